package apkg

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

const (
	fieldSeparator = "\x1f"

	defaultDeckID  = 1
	defaultDeckKey = "1"
)

// collection wraps the sqlite database stored inside a package.
type collection struct {
	conn *sql.DB
}

// openCollection opens the collection database at path and ensures the
// schema exists.
func openCollection(ctx context.Context, path string) (*collection, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to collection: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &collection{conn: db}, nil
}

func (c *collection) Close() error {
	return c.conn.Close()
}

type field struct {
	Name   string `json:"name"`
	Ord    int    `json:"ord"`
	Font   string `json:"font"`
	Size   int    `json:"size"`
	Media  []any  `json:"media"`
	RTL    bool   `json:"rtl"`
	Sticky bool   `json:"sticky"`
}

type cardTemplate struct {
	Name  string `json:"name"`
	Ord   int    `json:"ord"`
	Qfmt  string `json:"qfmt"`
	Afmt  string `json:"afmt"`
	Bqfmt string `json:"bqfmt"`
	Bafmt string `json:"bafmt"`
	Did   *int64 `json:"did"`
}

type model struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      int            `json:"type"`
	Mod       int64          `json:"mod"`
	Usn       int            `json:"usn"`
	Sortf     int            `json:"sortf"`
	Did       int64          `json:"did"`
	Tmpls     []cardTemplate `json:"tmpls"`
	Flds      []field        `json:"flds"`
	CSS       string         `json:"css"`
	LatexPre  string         `json:"latexPre"`
	LatexPost string         `json:"latexPost"`
	Tags      []string       `json:"tags"`
	Vers      []any          `json:"vers"`
	Req       [][]any        `json:"req"`
}

type deckEntry struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Desc      string `json:"desc"`
	Mod       int64  `json:"mod"`
	Usn       int    `json:"usn"`
	Collapsed bool   `json:"collapsed"`
	Conf      int    `json:"conf"`
	Dyn       int    `json:"dyn"`
	ExtendNew int    `json:"extendNew"`
	ExtendRev int    `json:"extendRev"`
	NewToday  [2]int `json:"newToday"`
	RevToday  [2]int `json:"revToday"`
	LrnToday  [2]int `json:"lrnToday"`
	TimeToday [2]int `json:"timeToday"`
}

func newDeckEntry(id int64, name string, mod int64) deckEntry {
	return deckEntry{ID: id, Name: name, Mod: mod, Usn: -1, Conf: 1, ExtendRev: 50}
}

func newModel(tmpl *domain.Template, deckID, mod int64) model {
	m := model{
		ID:        strconv.FormatInt(tmpl.ID, 10),
		Name:      tmpl.Name,
		Mod:       mod,
		Usn:       -1,
		Sortf:     1,
		Did:       deckID,
		CSS:       tmpl.CSS,
		LatexPre:  "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage[utf8]{inputenc}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}\n",
		LatexPost: "\\end{document}",
		Tags:      []string{},
		Vers:      []any{},
		Tmpls: []cardTemplate{{
			Name: "Card",
			Qfmt: tmpl.Front,
			Afmt: tmpl.Back,
		}},
	}

	var required []any
	for i, name := range tmpl.AllFields() {
		m.Flds = append(m.Flds, field{Name: name, Ord: i, Font: "Liberation Sans", Size: 20, Media: []any{}})
		if strings.Contains(tmpl.Front, "{{"+name+"}}") {
			required = append(required, i)
		}
	}
	m.Req = [][]any{{0, "any", required}}
	return m
}

// writeCollection stores the deck, its template and every note with one
// card each. Ids are derived from now so that they are unique within the
// package.
func (c *collection) writeCollection(ctx context.Context, deck domain.Deck, tmpl *domain.Template, notes []domain.Note, now time.Time) error {
	mod := now.Unix()

	models, err := json.Marshal(map[string]model{
		strconv.FormatInt(tmpl.ID, 10): newModel(tmpl, deck.ID, mod),
	})
	if err != nil {
		return fmt.Errorf("failed to encode models: %w", err)
	}
	// Anki expects deck 1 to exist; a deck that is itself id 1 takes its place.
	entries := map[string]deckEntry{
		defaultDeckKey: newDeckEntry(defaultDeckID, "Default", mod),
	}
	entries[strconv.FormatInt(deck.ID, 10)] = newDeckEntry(deck.ID, deck.Name, mod)
	decks, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode decks: %w", err)
	}

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		VALUES (NULL, ?, ?, ?, 11, 0, 0, 0, ?, ?, ?, ?, '{}')
	`, mod, now.UnixMilli(), now.UnixMilli(), defaultConf, string(models), string(decks), defaultDconf)
	if err != nil {
		return fmt.Errorf("failed to insert collection row: %w", err)
	}

	baseID := now.UnixMilli()
	for i, n := range notes {
		noteID := baseID + int64(i)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
			VALUES (?, ?, ?, ?, -1, '', ?, ?, ?, 0, '')
		`, noteID, n.GUID, tmpl.ID, mod, strings.Join(n.Fields, fieldSeparator), n.SortField(), checksum(n.SortField()))
		if err != nil {
			return fmt.Errorf("failed to insert note %s: %w", n.GUID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left, odue, odid, flags, data)
			VALUES (?, ?, ?, 0, ?, -1, 0, 0, ?, 0, 0, 0, 0, 0, 0, 0, 0, '')
		`, noteID, noteID, n.DeckID, mod, i)
		if err != nil {
			return fmt.Errorf("failed to insert card for note %s: %w", n.GUID, err)
		}
	}

	return tx.Commit()
}

// StoredNote is a note as read back from a package.
type StoredNote struct {
	GUID   string
	DeckID int64
	Fields []string
}

// readDeck returns the deck the cards of the collection belong to. A
// collection without cards falls back to its only deck besides Default.
func (c *collection) readDeck(ctx context.Context) (domain.Deck, error) {
	var raw string
	if err := c.conn.QueryRowContext(ctx, `SELECT decks FROM col`).Scan(&raw); err != nil {
		return domain.Deck{}, fmt.Errorf("failed to read decks: %w", err)
	}
	var decks map[string]deckEntry
	if err := json.Unmarshal([]byte(raw), &decks); err != nil {
		return domain.Deck{}, fmt.Errorf("failed to decode decks: %w", err)
	}

	var did int64
	err := c.conn.QueryRowContext(ctx, `SELECT did FROM cards ORDER BY id LIMIT 1`).Scan(&did)
	switch {
	case err == nil:
		d, ok := decks[strconv.FormatInt(did, 10)]
		if !ok {
			return domain.Deck{}, fmt.Errorf("cards point to unknown deck %d", did)
		}
		return domain.Deck{ID: d.ID, Name: d.Name}, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return domain.Deck{}, fmt.Errorf("failed to read card deck: %w", err)
	}

	if len(decks) == 1 {
		for _, d := range decks {
			return domain.Deck{ID: d.ID, Name: d.Name}, nil
		}
	}
	for key, d := range decks {
		if key != defaultDeckKey {
			return domain.Deck{ID: d.ID, Name: d.Name}, nil
		}
	}
	return domain.Deck{}, fmt.Errorf("collection has no deck")
}

// readNotes returns the notes of the collection in insertion order.
func (c *collection) readNotes(ctx context.Context) ([]StoredNote, error) {
	rows, err := c.conn.QueryContext(ctx, `
		SELECT n.guid, c.did, n.flds
		FROM notes n JOIN cards c ON c.nid = n.id
		ORDER BY n.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []StoredNote
	for rows.Next() {
		var n StoredNote
		var flds string
		if err := rows.Scan(&n.GUID, &n.DeckID, &flds); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		n.Fields = strings.Split(flds, fieldSeparator)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// checksum is Anki's duplicate-detection key: the first 32 bits of the SHA-1
// of the sort field with markup removed.
func checksum(sortField string) int64 {
	sum := sha1.Sum([]byte(htmlTag.ReplaceAllString(sortField, "")))
	v, _ := strconv.ParseInt(fmt.Sprintf("%x", sum[:4]), 16, 64)
	return v
}
