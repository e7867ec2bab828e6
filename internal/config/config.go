// Package config loads the run configuration of knoldeck from defaults, an
// optional YAML file, KNOLDECK_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "KNOLDECK_"

// Mode selects how the source is interpreted.
type Mode string

const (
	// ModeDebug exports a single file under the placeholder deck.
	ModeDebug Mode = "debug"
	// ModeRelease exports every deck file of a directory.
	ModeRelease Mode = "release"
)

// Config holds the settings of one export run.
type Config struct {
	Mode     Mode         `koanf:"mode" validate:"required,oneof=debug release"`
	Output   string       `koanf:"output" validate:"required"`
	LogLevel string       `koanf:"log_level" validate:"required,oneof=debug info warn error"`
	Source   SourceConfig `koanf:"source"`
	Deck     DeckConfig   `koanf:"deck"`
}

// SourceConfig says where deck files come from.
type SourceConfig struct {
	// Path is a deck file in debug mode and a directory in release mode.
	Path string `koanf:"path" validate:"required"`
	// Repo, when set, is cloned or pulled into ReposDir before a release
	// export and Path is taken relative to the checkout.
	Repo     string `koanf:"repo"`
	ReposDir string `koanf:"repos_dir" validate:"required"`
	Pattern  string `koanf:"pattern" validate:"required"`
}

// DeckConfig tunes identity checks.
type DeckConfig struct {
	// LocalUniqueness only rejects card ids repeated within one file.
	LocalUniqueness bool `koanf:"local_uniqueness"`
}

func defaults() map[string]any {
	return map[string]any{
		"output":           "deck.apkg",
		"log_level":        "info",
		"source.path":      ".",
		"source.repos_dir": "repos",
		"source.pattern":   "*.txt",
	}
}

// Flags returns the flag set understood by Load.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.StringP("output", "o", "deck.apkg", "path of the package to write")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("repo", "", "git repository to clone or pull before a release export")
	fs.String("repos-dir", "repos", "directory holding repository checkouts")
	fs.String("pattern", "*.txt", "glob selecting deck files in a release directory")
	fs.Bool("local-uniqueness", false, "only reject card ids repeated within one file")
	return fs
}

var flagKeys = map[string]string{
	"output":           "output",
	"log-level":        "log_level",
	"repo":             "source.repo",
	"repos-dir":        "source.repos_dir",
	"pattern":          "source.pattern",
	"local-uniqueness": "deck.local_uniqueness",
}

// Load builds the configuration for mode and the source path given on the
// command line. fs must come from Flags and already be parsed.
func Load(mode Mode, source string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// KNOLDECK_SOURCE_REPO -> source.repo
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		for _, section := range []string{"source_", "deck_"} {
			if strings.HasPrefix(key, section) {
				return strings.TrimSuffix(section, "_") + "." + strings.TrimPrefix(key, section)
			}
		}
		return key
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	err = k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	if err := k.Set("mode", string(mode)); err != nil {
		return nil, err
	}
	if source != "" {
		if err := k.Set("source.path", source); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its validate tags.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Mode == ModeDebug && c.Source.Repo != "" {
		return fmt.Errorf("invalid configuration: a repository source needs release mode")
	}
	return nil
}

// NewLogger returns a text logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
