// Package export runs one complete export: it collects deck files, folds
// them into a single deck and hands the notes to a packager.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/conorfennell/knoldeck/internal/config"
	"github.com/conorfennell/knoldeck/internal/deck"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/gitsource"
	"github.com/conorfennell/knoldeck/internal/parser"
)

// Packager serializes a finished deck.
type Packager interface {
	Write(ctx context.Context, path string, deck domain.Deck, tmpl *domain.Template, notes []domain.Note) error
}

// Result summarizes a successful export.
type Result struct {
	Deck   domain.Deck
	Files  []string
	Notes  int
	Output string
}

// Exporter runs exports with a fixed template and packager.
type Exporter struct {
	Template *domain.Template
	Packager Packager
	Logger   *slog.Logger
	// GitProgress receives clone and pull progress. May be nil.
	GitProgress io.Writer
}

// Run performs the export described by cfg. It stops at the first error and
// writes nothing in that case.
func (e *Exporter) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	files, err := e.sources(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	opts := deck.DefaultOptions()
	opts.UseDummyIdentity = cfg.Mode == config.ModeDebug
	opts.EnforceGlobalCardIDUniqueness = !cfg.Deck.LocalUniqueness
	acc := deck.New(e.Template, opts)

	for _, path := range files {
		f, err := parser.ParseFile(path, e.Template)
		if err != nil {
			return nil, err
		}
		if err := acc.Add(f); err != nil {
			return nil, err
		}
		logger.Debug("parsed deck file", "path", path, "file_id", f.FileID, "cards", len(f.Records))
	}

	notes, err := acc.Materialize()
	if err != nil {
		return nil, err
	}

	d := acc.Deck()
	if err := e.Packager.Write(ctx, cfg.Output, d, e.Template, notes); err != nil {
		return nil, fmt.Errorf("failed to write package %s: %w", cfg.Output, err)
	}

	logger.Info("export complete",
		"deck_id", d.ID,
		"deck_name", d.Name,
		"files", len(files),
		"notes", len(notes),
		"output", cfg.Output,
	)
	return &Result{Deck: d, Files: files, Notes: len(notes), Output: cfg.Output}, nil
}

// sources lists the deck files of the run in a deterministic order.
func (e *Exporter) sources(ctx context.Context, logger *slog.Logger, cfg *config.Config) ([]string, error) {
	if cfg.Mode == config.ModeDebug {
		return []string{cfg.Source.Path}, nil
	}

	dir := cfg.Source.Path
	if cfg.Source.Repo != "" {
		checkout, err := gitsource.LocalPath(cfg.Source.ReposDir, cfg.Source.Repo)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(checkout), os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := gitsource.Sync(ctx, logger, cfg.Source.Repo, checkout, e.GitProgress); err != nil {
			return nil, err
		}
		dir = filepath.Join(checkout, dir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading source %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", dir)
	}

	if _, err := filepath.Match(cfg.Source.Pattern, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", cfg.Source.Pattern, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading source %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if ok, _ := filepath.Match(cfg.Source.Pattern, entry.Name()); !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files matching %q in %s", cfg.Source.Pattern, dir)
	}
	sort.Strings(files)
	return files, nil
}
