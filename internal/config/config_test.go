package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := Flags("knoldeck")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(ModeRelease, "cards", parseFlags(t))
	require.NoError(t, err)

	assert.Equal(t, ModeRelease, cfg.Mode)
	assert.Equal(t, "deck.apkg", cfg.Output)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "cards", cfg.Source.Path)
	assert.Equal(t, "*.txt", cfg.Source.Pattern)
	assert.Equal(t, "repos", cfg.Source.ReposDir)
	assert.Empty(t, cfg.Source.Repo)
	assert.False(t, cfg.Deck.LocalUniqueness)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knoldeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output: from-file.apkg
log_level: warn
source:
  pattern: "*.cards"
deck:
  local_uniqueness: true
`), 0o644))

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := Load(ModeRelease, "", parseFlags(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, "from-file.apkg", cfg.Output)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, "*.cards", cfg.Source.Pattern)
		assert.True(t, cfg.Deck.LocalUniqueness)
		assert.Equal(t, ".", cfg.Source.Path)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("KNOLDECK_OUTPUT", "from-env.apkg")
		t.Setenv("KNOLDECK_SOURCE_REPO", "https://github.com/u/cards.git")

		cfg, err := Load(ModeRelease, "", parseFlags(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, "from-env.apkg", cfg.Output)
		assert.Equal(t, "https://github.com/u/cards.git", cfg.Source.Repo)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("KNOLDECK_OUTPUT", "from-env.apkg")

		cfg, err := Load(ModeRelease, "", parseFlags(t, "--config", path, "-o", "from-flag.apkg", "--log-level", "debug"))
		require.NoError(t, err)
		assert.Equal(t, "from-flag.apkg", cfg.Output)
		assert.Equal(t, "debug", cfg.LogLevel)
	})
}

func TestLoadValidation(t *testing.T) {
	t.Run("unknown log level", func(t *testing.T) {
		_, err := Load(ModeRelease, "", parseFlags(t, "--log-level", "loud"))
		assert.Error(t, err)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := Load(Mode("publish"), "", parseFlags(t))
		assert.Error(t, err)
	})

	t.Run("repository in debug mode", func(t *testing.T) {
		_, err := Load(ModeDebug, "deck.txt", parseFlags(t, "--repo", "https://github.com/u/cards.git"))
		assert.Error(t, err)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := Load(ModeRelease, "", parseFlags(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn"}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "file_id", "file_id:abc")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "file_id=file_id:abc")
}
