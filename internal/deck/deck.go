// Package deck folds parsed files into one deck and turns the result into
// notes ready for packaging.
package deck

import (
	"fmt"
	"maps"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/knol"
	"github.com/conorfennell/knoldeck/internal/parser"
)

// Placeholder identity used by debug runs.
const (
	DummyDeckID         int64 = 97925
	PlaceholderDeckName       = "Test deck (knoldeck)"
)

// Options selects the identity and uniqueness rules of a run.
type Options struct {
	// UseDummyIdentity exports under the placeholder deck instead of the
	// deck named by the files. Headers are still validated.
	UseDummyIdentity bool
	// EnforceGlobalCardIDUniqueness rejects a card id already used by an
	// earlier file, not only within the same file.
	EnforceGlobalCardIDUniqueness bool
}

// DefaultOptions returns the strict release options.
func DefaultOptions() Options {
	return Options{EnforceGlobalCardIDUniqueness: true}
}

// Accumulator collects the records of every file of one export run.
type Accumulator struct {
	opts     Options
	tmpl     *domain.Template
	deck     domain.Deck
	started  bool
	fileIDs  map[string]string // file id -> path
	cardIDs  map[string]string // card id -> file id
	records  []domain.Record
	numFiles int
}

// New returns an empty accumulator for tmpl.
func New(tmpl *domain.Template, opts Options) *Accumulator {
	a := &Accumulator{
		opts:    opts,
		tmpl:    tmpl,
		fileIDs: make(map[string]string),
		cardIDs: make(map[string]string),
	}
	if opts.UseDummyIdentity {
		a.deck = domain.Deck{ID: DummyDeckID, Name: PlaceholderDeckName}
	}
	return a
}

// Add folds one parsed file into the deck. The first file establishes the
// deck identity and every later file must repeat it exactly. A rejected file
// leaves the accumulator unchanged.
func (a *Accumulator) Add(f *parser.File) error {
	if prev, ok := a.fileIDs[f.FileID]; ok {
		return fmt.Errorf("%s: %w: %s already used by %s", f.Path, domain.ErrDuplicateFile, f.FileID, prev)
	}

	deck := domain.Deck{ID: f.DeckID, Name: f.DeckName}
	if !a.opts.UseDummyIdentity && a.started && deck != a.deck {
		return fmt.Errorf("%s: %w: file declares %d %q, run uses %d %q",
			f.Path, domain.ErrAmbiguousDeck, deck.ID, deck.Name, a.deck.ID, a.deck.Name)
	}

	if a.opts.EnforceGlobalCardIDUniqueness {
		for _, r := range f.Records {
			if other, ok := a.cardIDs[r.CardID]; ok {
				return fmt.Errorf("%s: %w %s, also in %s", f.Path, domain.ErrDuplicateCard, r.CardID, other)
			}
		}
	}

	if !a.opts.UseDummyIdentity && !a.started {
		a.deck = deck
	}
	a.started = true
	a.fileIDs[f.FileID] = f.Path
	for _, r := range f.Records {
		a.cardIDs[r.CardID] = f.FileID
	}
	for _, r := range f.Records {
		a.records = append(a.records, cloneRecord(r))
	}
	a.numFiles++
	return nil
}

// Deck returns the deck identity of the run.
func (a *Accumulator) Deck() domain.Deck {
	return a.deck
}

// Records returns a copy of the accumulated records in file order.
func (a *Accumulator) Records() []domain.Record {
	out := make([]domain.Record, len(a.records))
	for i, r := range a.records {
		out[i] = cloneRecord(r)
	}
	return out
}

func cloneRecord(r domain.Record) domain.Record {
	return domain.Record{CardID: r.CardID, Fields: maps.Clone(r.Fields)}
}

// Files returns the number of files added so far.
func (a *Accumulator) Files() int {
	return a.numFiles
}

// Materialize converts every accumulated record into a note. It fails only
// when an internal invariant is broken.
func (a *Accumulator) Materialize() ([]domain.Note, error) {
	if !a.opts.UseDummyIdentity && a.started && a.deck.ID == DummyDeckID {
		return nil, fmt.Errorf("%w: release run still uses the placeholder deck id", domain.ErrInvariant)
	}

	notes := make([]domain.Note, 0, len(a.records))
	for _, r := range a.records {
		n, err := a.note(r)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func (a *Accumulator) note(r domain.Record) (domain.Note, error) {
	if err := r.Validate(a.tmpl); err != nil {
		return domain.Note{}, err
	}
	fields := make([]string, 0, len(a.tmpl.Fields)+1)
	fields = append(fields, r.CardID)
	for _, name := range a.tmpl.Fields {
		fields = append(fields, r.Fields[name])
	}
	return domain.Note{
		GUID:     knol.GUID(a.deck.ID, r.CardID),
		DeckID:   a.deck.ID,
		CardID:   r.CardID,
		Template: a.tmpl,
		Fields:   fields,
	}, nil
}
