package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/oidc-bootstrap/internal/discovery"
	"github.com/wolfeidau/oidc-bootstrap/internal/jwks"
	"github.com/wolfeidau/oidc-bootstrap/internal/keys"
	"github.com/wolfeidau/oidc-bootstrap/internal/logger"
)

// ErrIssuerRequired is returned when no issuer URL was supplied.
var ErrIssuerRequired = errors.New("--issuer is required")

// BootstrapCmd writes OIDC provider metadata and a signing key for local development.
type BootstrapCmd struct {
	Issuer string `help:"OIDC issuer base URL" required:"" env:"OIDC_ISSUER"`
	KID    string `name:"kid" help:"key identifier of the signing key, empty selects the default" default:"default" env:"OIDC_KID"`
	Dir    string `help:"directory the .well-known and .data trees are written to" default:"." env:"OIDC_BOOTSTRAP_DIR" type:"path"`
}

// bootstrapPaths holds the output locations, relative to Dir.
type bootstrapPaths struct {
	discovery   string
	jwks        string
	privateKeys string
}

// Run executes the bootstrap command
func (cmd *BootstrapCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)

	if cmd.Issuer == "" {
		return ErrIssuerRequired
	}

	if cmd.KID == "" {
		cmd.KID = keys.DefaultKeyID
	}

	issuer := discovery.NormalizeIssuer(cmd.Issuer)
	paths := cmd.paths()

	log.Info().
		Str("issuer", issuer).
		Str("kid", cmd.KID).
		Msg("Starting OIDC bootstrap")

	if err := discovery.New(issuer).Write(paths.discovery); err != nil {
		return err
	}

	log.Info().Str("path", paths.discovery).Msg("Wrote discovery document")

	store, err := keys.NewStore(paths.privateKeys)
	if err != nil {
		return err
	}

	pub, created, err := store.Ensure(ctx, cmd.KID)
	if err != nil {
		return fmt.Errorf("failed to ensure keypair: %w", err)
	}

	logSigningKey(log.Logger, cmd.KID, pub, created)

	set := jwks.Load(paths.jwks)

	added, err := set.Add(cmd.KID, pub)
	if err != nil {
		return fmt.Errorf("failed to add key to jwks: %w", err)
	}

	if !added {
		log.Info().Str("kid", cmd.KID).Msg("Key already present in jwks, leaving it untouched")
		return nil
	}

	if err := set.Save(paths.jwks); err != nil {
		return err
	}

	log.Info().
		Str("path", paths.jwks).
		Int("keys", len(set.Keys)).
		Msg("Added key to jwks")

	return nil
}

// logSigningKey reports the key in use. A fingerprint failure is logged but
// does not stop the bootstrap.
func logSigningKey(logger zerolog.Logger, kid string, pub jwk.Key, created bool) {
	fingerprint, err := keys.Fingerprint(pub)
	if err != nil {
		logger.Warn().Err(err).Str("kid", kid).Msg("Failed to fingerprint signing key")
	}

	logger.Info().
		Str("kid", kid).
		Str("fingerprint", fingerprint).
		Bool("created", created).
		Msg("Signing key ready")
}

func (cmd *BootstrapCmd) paths() bootstrapPaths {
	dir := cmd.Dir
	if dir == "" {
		dir = "."
	}

	return bootstrapPaths{
		discovery:   filepath.Join(dir, ".well-known", "openid-configuration"),
		jwks:        filepath.Join(dir, ".well-known", "jwks.json"),
		privateKeys: filepath.Join(dir, ".data", "private-keys"),
	}
}
