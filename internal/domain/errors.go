// Package domain defines the deck, template, record and note types shared by
// the export pipeline, together with the errors it reports.
package domain

import "errors"

// Errors reported by the export pipeline. Every one of them aborts the run.
var (
	// ErrMalformedHeader is returned when the deck_id, deck_name or file_id
	// line of an input file is missing or incorrectly tagged.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrMalformedBody is returned when the card lines of a file do not divide
	// evenly into cards.
	ErrMalformedBody = errors.New("wrong file format")

	// ErrDuplicateFile is returned when a file_id is reused within one run.
	ErrDuplicateFile = errors.New("duplicate file_id")

	// ErrDuplicateCard is returned when two cards share a card id.
	ErrDuplicateCard = errors.New("duplicate card id")

	// ErrAmbiguousDeck is returned when a file disagrees with the deck
	// identity established by the first file of the run.
	ErrAmbiguousDeck = errors.New("ambiguous deck_id or deck_name")

	// ErrInvariant signals a programming error rather than bad input.
	ErrInvariant = errors.New("internal invariant violated")
)
