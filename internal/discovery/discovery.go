package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wolfeidau/oidc-bootstrap/internal/keys"
)

// JWKSPath is the location of the key set relative to the issuer.
const JWKSPath = "/.well-known/jwks.json"

// Document is the OpenID Connect provider metadata published at
// /.well-known/openid-configuration.
type Document struct {
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	Issuer                           string   `json:"issuer"`
	JWKSURI                          string   `json:"jwks_uri"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
}

// NormalizeIssuer strips a single trailing slash from the issuer URL.
func NormalizeIssuer(issuer string) string {
	return strings.TrimSuffix(issuer, "/")
}

// New builds the discovery document for an issuer. Only id tokens signed
// with the key store's algorithm are advertised.
func New(issuer string) *Document {
	issuer = NormalizeIssuer(issuer)

	return &Document{
		IDTokenSigningAlgValuesSupported: []string{keys.SigningAlgorithm.String()},
		Issuer:                           issuer,
		JWKSURI:                          issuer + JWKSPath,
		AuthorizationEndpoint:            issuer,
		ResponseTypesSupported:           []string{"id_token"},
		SubjectTypesSupported:            []string{"public"},
	}
}

// Write replaces the file at path with the pretty printed document,
// creating the parent directory if needed.
func (d *Document) Write(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal discovery document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create discovery directory: %w", err)
	}

	// #nosec G306 - discovery metadata is public
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write discovery document: %w", err)
	}

	return nil
}
