// Package knol derives the stable identities of cards and notes.
package knol

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// CardID hashes the UTF-8 bytes of parts, concatenated in order, with
// SHA-256 and returns the digest as lower-case hex.
func CardID(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

const base91 = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!#$%&()*+,-./:;<=>?@[]^_`{|}~"

// GUID returns the Anki note guid for values. The values are formatted, joined
// with "__" and hashed; the first 8 bytes of the digest are written in Anki's
// base91 alphabet. Identical values always give the same guid, which lets
// Anki treat a re-imported note as an update.
func GUID(values ...any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "__")))
	n := binary.BigEndian.Uint64(sum[:8])

	var buf [11]byte // 91^11 > 2^64
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base91[n%uint64(len(base91))]
		n /= uint64(len(base91))
	}
	return string(buf[i:])
}
