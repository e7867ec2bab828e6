package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Deck identifies the deck all notes of one export belong to.
type Deck struct {
	ID   int64
	Name string
}

// Record is one parsed card: the values of the template's declared fields,
// keyed by field name, plus the card id derived from its seed line.
type Record struct {
	CardID string `validate:"required,hexadecimal,len=64"`
	Fields map[string]string
}

// NewRecord builds a record from values listed in the template's declared
// field order.
func NewRecord(tmpl *Template, cardID string, values []string) (Record, error) {
	if len(values) != len(tmpl.Fields) {
		return Record{}, fmt.Errorf("%w: got %d values for %d fields", ErrMalformedBody, len(values), len(tmpl.Fields))
	}
	r := Record{CardID: cardID, Fields: make(map[string]string, len(values))}
	for i, name := range tmpl.Fields {
		r.Fields[name] = values[i]
	}
	if err := r.Validate(tmpl); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Validate checks the card id and that exactly the template's declared
// fields are present.
func (r Record) Validate(tmpl *Template) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: card id: %v", ErrInvariant, err)
	}
	if len(r.Fields) != len(tmpl.Fields) {
		return fmt.Errorf("%w: record has %d fields, template declares %d", ErrInvariant, len(r.Fields), len(tmpl.Fields))
	}
	for _, name := range tmpl.Fields {
		if _, ok := r.Fields[name]; !ok {
			return fmt.Errorf("%w: record is missing field %q", ErrInvariant, name)
		}
	}
	return nil
}

// Note is the exportable form of a record, bound to a deck and a template.
type Note struct {
	GUID     string
	DeckID   int64
	CardID   string
	Template *Template
	Fields   []string // values in Template.AllFields order
}

// SortField is the value Anki sorts and checksums notes by: the first
// declared field.
func (n Note) SortField() string {
	if len(n.Fields) < 2 {
		return ""
	}
	return n.Fields[1]
}
