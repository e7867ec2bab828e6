// Package parser reads deck text files into card records.
//
// A deck file starts with three header lines (deck id, deck name and a
// "file_id:" tagged line) followed by cards. Each card is a seed line, which
// only feeds the card id, and one line per template field. Blank lines are
// ignored everywhere.
package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/knol"
)

const (
	deckIDPrefix   = "deck_id:"
	deckNamePrefix = "deck_name:"
	fileIDPrefix   = "file_id:"

	headerLines = 3
)

// File is the parsed content of one deck file.
type File struct {
	Path     string
	DeckID   int64
	DeckName string
	FileID   string
	Records  []domain.Record
}

// Error describes why a file was rejected. Err is one of the domain errors.
type Error struct {
	Path    string
	Line    int // 1-based index among non-blank lines, 0 when not tied to a line
	Content string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	b.WriteString(e.Err.Error())
	if e.Content != "" {
		fmt.Fprintf(&b, " (%q)", e.Content)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ParseFile reads the file at path and extracts its header and cards.
func ParseFile(path string, tmpl *domain.Template) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f, err := Parse(file, tmpl)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	f.Path = path
	return f, nil
}

// Parse reads a deck file from r. Records keep the order of the file.
func Parse(r io.Reader, tmpl *domain.Template) (*File, error) {
	var lines []string
	for line, err := range NonBlank(r) {
		if err != nil {
			return nil, &Error{Line: len(lines) + 1, Err: fmt.Errorf("read failed: %w", err)}
		}
		lines = append(lines, line)
	}

	if len(lines) < headerLines {
		return nil, &Error{
			Line: len(lines) + 1,
			Err:  fmt.Errorf("%w: expected deck_id, deck_name and file_id lines, found %d lines", domain.ErrMalformedHeader, len(lines)),
		}
	}

	f := &File{}
	var err error
	if f.DeckID, err = parseDeckID(lines[0]); err != nil {
		return nil, &Error{Line: 1, Content: lines[0], Err: err}
	}
	if f.DeckName, err = parseDeckName(lines[1]); err != nil {
		return nil, &Error{Line: 2, Content: lines[1], Err: err}
	}
	if f.FileID, err = parseFileID(lines[2]); err != nil {
		return nil, &Error{Line: 3, Content: lines[2], Err: err}
	}

	cardLines := lines[headerLines:]
	per := tmpl.LinesPerCard()
	if len(cardLines)%per != 0 {
		return nil, &Error{
			Err: fmt.Errorf("%w: %d card lines is not a multiple of %d lines per card", domain.ErrMalformedBody, len(cardLines), per),
		}
	}

	seen := make(map[string]int, len(cardLines)/per)
	f.Records = make([]domain.Record, 0, len(cardLines)/per)
	for i := 0; i < len(cardLines); i += per {
		seed := cardLines[i]
		lineNo := headerLines + i + 1
		cardID := knol.CardID(seed, f.FileID)
		if first, ok := seen[cardID]; ok {
			return nil, &Error{
				Line:    lineNo,
				Content: seed,
				Err:     fmt.Errorf("%w %s in file %s, first seen on line %d", domain.ErrDuplicateCard, cardID, f.FileID, first),
			}
		}
		seen[cardID] = lineNo

		record, err := domain.NewRecord(tmpl, cardID, cardLines[i+1:i+per])
		if err != nil {
			return nil, &Error{Line: lineNo, Content: seed, Err: err}
		}
		f.Records = append(f.Records, record)
	}

	return f, nil
}

// trimTag removes a case-insensitive tag prefix, reporting whether it was
// present.
func trimTag(line, tag string) (string, bool) {
	if len(line) >= len(tag) && strings.EqualFold(line[:len(tag)], tag) {
		return strings.TrimSpace(line[len(tag):]), true
	}
	return line, false
}

func parseDeckID(line string) (int64, error) {
	value, _ := trimTag(line, deckIDPrefix)
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: deck_id must be an integer", domain.ErrMalformedHeader)
	}
	return id, nil
}

func parseDeckName(line string) (string, error) {
	name, _ := trimTag(line, deckNamePrefix)
	if name == "" {
		return "", fmt.Errorf("%w: deck_name is empty", domain.ErrMalformedHeader)
	}
	return name, nil
}

// parseFileID returns the normalized file identity: the whole tagged line,
// lower-cased. Spacing after the tag is kept since it feeds the card ids.
func parseFileID(line string) (string, error) {
	token, ok := trimTag(line, fileIDPrefix)
	if !ok {
		return "", fmt.Errorf("%w: third line must start with %q", domain.ErrMalformedHeader, fileIDPrefix)
	}
	if token == "" {
		return "", fmt.Errorf("%w: file_id is empty", domain.ErrMalformedHeader)
	}
	return strings.ToLower(line), nil
}
