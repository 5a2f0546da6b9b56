package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAML(t *testing.T) {
	t.Run("resolves flags from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("issuer: https://yaml.example.com/\nkid: from-yaml\n"), 0600))

		var cmd BootstrapCmd
		parser, err := kong.New(&cmd, kong.Configuration(YAML, path))
		require.NoError(t, err)

		_, err = parser.Parse([]string{})
		require.NoError(t, err)
		assert.Equal(t, "https://yaml.example.com/", cmd.Issuer)
		assert.Equal(t, "from-yaml", cmd.KID)
	})

	t.Run("flags take precedence", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("issuer: https://yaml.example.com\n"), 0600))

		var cmd BootstrapCmd
		parser, err := kong.New(&cmd, kong.Configuration(YAML, path))
		require.NoError(t, err)

		_, err = parser.Parse([]string{"--issuer", "https://flag.example.com"})
		require.NoError(t, err)
		assert.Equal(t, "https://flag.example.com", cmd.Issuer)
	})

	t.Run("missing file is ignored", func(t *testing.T) {
		var cmd BootstrapCmd
		parser, err := kong.New(&cmd, kong.Configuration(YAML, filepath.Join(t.TempDir(), "absent.yaml")))
		require.NoError(t, err)

		_, err = parser.Parse([]string{"--issuer", "https://example.com"})
		require.NoError(t, err)
		assert.Equal(t, "default", cmd.KID)
	})

	t.Run("empty file is accepted", func(t *testing.T) {
		_, err := YAML(strings.NewReader(""))
		require.NoError(t, err)
	})

	t.Run("invalid yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("issuer: [unterminated\n"), 0600))

		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()

		_, err = YAML(f)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode yaml config")
	})
}
