package knol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCardID(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		// sha256("What is 2+2?file_id:abc")
		expected := "3beaea3a2d05dce6115f51708fce281f2b590dc1b437e6dc5aab4e5479f2dbb7"
		assert.Equal(t, expected, CardID("What is 2+2?", "file_id:abc"))
	})

	t.Run("no parts hashes the empty string", func(t *testing.T) {
		assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", CardID())
	})

	t.Run("hash is deterministic", func(t *testing.T) {
		assert.Equal(t, CardID("Test", "file_id:x"), CardID("Test", "file_id:x"))
	})

	t.Run("parts are concatenated", func(t *testing.T) {
		assert.Equal(t, CardID("ab", "c"), CardID("a", "bc"))
	})

	t.Run("different inputs have different hashes", func(t *testing.T) {
		seen := make(map[string]string)
		for i := 0; i < 1000; i++ {
			for _, fileID := range []string{"file_id:a", "file_id:b"} {
				seed := fmt.Sprintf("question %d", i)
				id := CardID(seed, fileID)
				if prev, ok := seen[id]; ok {
					t.Fatalf("collision between %q and %q", prev, seed+fileID)
				}
				seen[id] = seed + fileID
			}
		}
	})
}

func TestGUID(t *testing.T) {
	testCases := []struct {
		name     string
		values   []any
		expected string
	}{
		{
			name:     "deck id and card id",
			values:   []any{int64(1234), "3beaea3a2d05dce6115f51708fce281f2b590dc1b437e6dc5aab4e5479f2dbb7"},
			expected: "dgfS)/0%0F",
		},
		{
			name:     "short card id",
			values:   []any{1234, "x"},
			expected: "qp(faq3`4/",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, GUID(tc.values...))
		})
	}

	t.Run("stable across calls", func(t *testing.T) {
		assert.Equal(t, GUID(97925, "abc"), GUID(97925, "abc"))
		assert.NotEqual(t, GUID(97925, "abc"), GUID(97926, "abc"))
	})
}
