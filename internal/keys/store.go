package keys

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultKeyID is used when no key identifier is given.
	DefaultKeyID = "default"

	// RSAKeyBits is the modulus size of generated signing keys.
	RSAKeyBits = 2048
)

// SigningAlgorithm is the algorithm generated keys are intended for.
var SigningAlgorithm = jwa.RS256

const (
	privateKeySuffix = ".key.json"
	publicKeySuffix  = ".pub.json"
)

// ErrInvalidKeyID is returned when a key identifier cannot be used as a file name.
var ErrInvalidKeyID = errors.New("invalid key id")

// Paths holds the on-disk locations of a keypair.
type Paths struct {
	Private string
	Public  string
}

// Store manages RSA signing keys in JWK form on the local filesystem.
type Store struct {
	baseDir string
}

// NewStore creates the key directory, including parents, if it is missing.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("key store initialized")

	return &Store{baseDir: baseDir}, nil
}

// Paths returns the private and public key file paths for kid.
func (s *Store) Paths(kid string) Paths {
	return Paths{
		Private: filepath.Join(s.baseDir, kid+privateKeySuffix),
		Public:  filepath.Join(s.baseDir, kid+publicKeySuffix),
	}
}

// Ensure returns the public key for kid, generating and persisting a new
// keypair when the public key file does not exist. created reports whether
// a keypair was generated.
//
// Only the public key file is probed. An existing private key file is never
// read or validated, and a missing one is not recreated.
func (s *Store) Ensure(ctx context.Context, kid string) (pub jwk.Key, created bool, err error) {
	if err := ValidateKeyID(kid); err != nil {
		return nil, false, err
	}

	paths := s.Paths(kid)

	if fileExists(paths.Public) {
		pub, err := readPublicKey(paths.Public)
		if err != nil {
			return nil, false, err
		}

		log.Info().Str("kid", kid).Str("path", paths.Public).Msg("using existing public key")

		return pub, false, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	log.Info().
		Str("kid", kid).
		Str("alg", SigningAlgorithm.String()).
		Int("bits", RSAKeyBits).
		Msg("generating new keypair")

	pub, err = s.generate(paths)
	if err != nil {
		return nil, false, err
	}

	log.Info().
		Str("path_private", paths.Private).
		Str("path_public", paths.Public).
		Msg("generated and saved keypair")

	return pub, true, nil
}

func (s *Store) generate(paths Paths) (jwk.Key, error) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	priv, err := jwk.FromRaw(rsaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to export private key: %w", err)
	}

	pub, err := priv.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to export public key: %w", err)
	}

	privJSON, err := json.Marshal(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	pubJSON, err := json.Marshal(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	if err := os.WriteFile(paths.Private, privJSON, 0600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}

	// #nosec G306 - public keys are intentionally world-readable
	if err := os.WriteFile(paths.Public, pubJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write public key: %w", err)
	}

	return pub, nil
}

func readPublicKey(path string) (jwk.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}

	pub, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key %s: %w", path, err)
	}

	return pub, nil
}

// ValidateKeyID checks that kid names a single file within the key directory.
func ValidateKeyID(kid string) error {
	switch {
	case kid == "", kid == ".", kid == "..":
		return fmt.Errorf("%w: %q", ErrInvalidKeyID, kid)
	case strings.ContainsAny(kid, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidKeyID, kid)
	}
	return nil
}

// Fingerprint returns the base58 encoded SHA-256 JWK thumbprint of key.
func Fingerprint(key jwk.Key) (string, error) {
	tp, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute thumbprint: %w", err)
	}
	return base58.Encode(tp), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
