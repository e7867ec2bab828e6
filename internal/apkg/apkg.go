// Package apkg writes and reads Anki deck packages: a zip archive holding
// the sqlite collection and a media manifest.
package apkg

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
)

const (
	collectionEntry = "collection.anki2"
	mediaEntry      = "media"

	packageMode os.FileMode = 0o644
)

// Packager writes one package per call to Write.
type Packager struct {
	// Now stamps modification times and seeds note ids. Defaults to
	// time.Now.
	Now func() time.Time
}

// Write builds the collection for deck and notes and stores it as a package
// at path. The package appears at path only if every step succeeds.
func (p *Packager) Write(ctx context.Context, path string, deck domain.Deck, tmpl *domain.Template, notes []domain.Note) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	workDir, err := os.MkdirTemp("", "knoldeck-*")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	dbPath := filepath.Join(workDir, collectionEntry)
	col, err := openCollection(ctx, dbPath)
	if err != nil {
		return err
	}
	if err := col.writeCollection(ctx, deck, tmpl, notes, now()); err != nil {
		col.Close()
		return err
	}
	if err := col.Close(); err != nil {
		return fmt.Errorf("failed to close collection: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".knoldeck-*.apkg")
	if err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeArchive(tmp, dbPath); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(packageMode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set package permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close package: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move package into place: %w", err)
	}
	return nil
}

func writeArchive(w io.Writer, dbPath string) error {
	zw := zip.NewWriter(w)

	entry, err := zw.Create(collectionEntry)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", collectionEntry, err)
	}
	db, err := os.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open collection: %w", err)
	}
	defer db.Close()
	if _, err := io.Copy(entry, db); err != nil {
		return fmt.Errorf("failed to write %s: %w", collectionEntry, err)
	}

	media, err := zw.Create(mediaEntry)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", mediaEntry, err)
	}
	if _, err := io.WriteString(media, "{}"); err != nil {
		return fmt.Errorf("failed to write %s: %w", mediaEntry, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish package: %w", err)
	}
	return nil
}

// Package is the content of a package read back from disk.
type Package struct {
	Deck  domain.Deck
	Notes []StoredNote
}

// Read opens the package at path and returns its deck and notes.
func Read(ctx context.Context, path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}
	defer zr.Close()

	workDir, err := os.MkdirTemp("", "knoldeck-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	dbPath := filepath.Join(workDir, collectionEntry)
	if err := extract(zr, collectionEntry, dbPath); err != nil {
		return nil, err
	}

	col, err := openCollection(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer col.Close()

	deck, err := col.readDeck(ctx)
	if err != nil {
		return nil, err
	}
	notes, err := col.readNotes(ctx)
	if err != nil {
		return nil, err
	}
	return &Package{Deck: deck, Notes: notes}, nil
}

func extract(zr *zip.ReadCloser, name, dest string) error {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()

		out, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", dest, err)
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			return fmt.Errorf("failed to extract %s: %w", name, err)
		}
		return out.Close()
	}
	return fmt.Errorf("package has no %s entry", name)
}
