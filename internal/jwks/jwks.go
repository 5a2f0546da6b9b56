package jwks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/zerolog/log"
)

// Entry is a single key in the set. The encoded key is retained as-is so
// existing entries are rewritten without modification.
type Entry struct {
	KID string
	// named is false when the entry has no string kid, so it never matches.
	named bool
	raw   json.RawMessage
}

// UnmarshalJSON keeps the raw key and extracts its kid. Entries that are not
// objects, or whose kid is not a string, are kept but match no kid.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	e.KID, e.named = "", false
	if fields, ok := value.(map[string]any); ok {
		e.KID, e.named = fields["kid"].(string)
	}

	e.raw = append(json.RawMessage(nil), data...)

	return nil
}

// MarshalJSON returns the key exactly as it was loaded or added.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.raw == nil {
		return nil, fmt.Errorf("jwks entry %q has no key material", e.KID)
	}
	return e.raw, nil
}

// Document is a JSON Web Key Set.
type Document struct {
	Keys []Entry `json:"keys"`
}

// Load reads the key set at path. Any failure to read or decode the file
// yields an empty set.
func Load(path string) *Document {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no existing jwks, starting empty")
		} else {
			log.Warn().Err(err).Str("path", path).Msg("failed to read jwks, starting empty")
		}
		return &Document{Keys: []Entry{}}
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to parse jwks, starting empty")
		return &Document{Keys: []Entry{}}
	}

	if doc.Keys == nil {
		doc.Keys = []Entry{}
	}

	return doc
}

// Has reports whether an entry with kid is present.
func (d *Document) Has(kid string) bool {
	for _, entry := range d.Keys {
		if entry.named && entry.KID == kid {
			return true
		}
	}
	return false
}

// Add appends key tagged with kid unless an entry for kid already exists.
// It reports whether the set changed. Existing entries are never compared
// against key.
func (d *Document) Add(kid string, key jwk.Key) (bool, error) {
	if d.Has(kid) {
		return false, nil
	}

	tagged, err := key.Clone()
	if err != nil {
		return false, fmt.Errorf("failed to clone key: %w", err)
	}

	if err := tagged.Set(jwk.KeyIDKey, kid); err != nil {
		return false, fmt.Errorf("failed to set kid: %w", err)
	}

	raw, err := json.Marshal(tagged)
	if err != nil {
		return false, fmt.Errorf("failed to marshal key: %w", err)
	}

	d.Keys = append(d.Keys, Entry{KID: kid, named: true, raw: raw})

	return true, nil
}

// Save writes the pretty printed key set to path, creating the parent
// directory if needed.
func (d *Document) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal jwks: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create jwks directory: %w", err)
	}

	// #nosec G306 - key sets only hold public keys
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write jwks: %w", err)
	}

	return nil
}
