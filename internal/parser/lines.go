package parser

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"
)

// NonBlank yields the lines of r with surrounding whitespace removed,
// skipping lines that are empty after trimming. Lines have no length limit.
// A read error is yielded once, as the last element.
func NonBlank(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		br := bufio.NewReader(r)
		for {
			raw, err := br.ReadString('\n')
			if line := strings.TrimSpace(raw); line != "" {
				if !yield(line, nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}
