package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/oidc-bootstrap/cmd/oidc-bootstrap/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Bootstrap commands.BootstrapCmd `cmd:"" default:"withargs" help:"Write OIDC discovery metadata and ensure a signing key"`
		Config    kong.ConfigFlag       `help:"Load flag values from a YAML file."`
		Debug     bool                  `help:"Enable debug mode."`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Description("Bootstrap local OIDC provider metadata and signing keys."),
		kong.Configuration(commands.YAML, "~/.oidc-bootstrap.yaml", ".oidc-bootstrap.yaml"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
