package domain

import (
	"strings"

	"github.com/rivo/uniseg"
)

// MaxNameRunes is the maximum length of a ValidName, counted in grapheme
// clusters (matching the original's unicode_segmentation::graphemes count,
// not raw code points: a multi-codepoint grapheme counts once).
const MaxNameRunes = 256

// ValidName is a non-empty string of at most MaxNameRunes grapheme clusters with no
// leading or trailing whitespace. It has a total order (lexicographic on the
// underlying string) and can only be constructed through ParseValidName.
type ValidName struct {
	value string
}

// ParseValidName validates raw and returns the corresponding ValidName.
func ParseValidName(raw string) (ValidName, error) {
	if raw == "" {
		return ValidName{}, newValidationError("name", raw, "must not be empty")
	}
	if strings.TrimSpace(raw) != raw {
		return ValidName{}, newValidationError("name", raw, "must not have leading or trailing whitespace")
	}
	if n := uniseg.GraphemeClusterCount(raw); n > MaxNameRunes {
		return ValidName{}, newValidationError("name", raw, "must be at most 256 characters")
	}
	return ValidName{value: raw}, nil
}

// MustName parses raw and panics on failure. Intended for literals in tests
// and static configuration, never for data coming off the wire.
func MustName(raw string) ValidName {
	n, err := ParseValidName(raw)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the underlying value.
func (n ValidName) String() string { return n.value }

// Less reports whether n sorts before other.
func (n ValidName) Less(other ValidName) bool { return n.value < other.value }

func (n ValidName) MarshalText() ([]byte, error) { return []byte(n.value), nil }

func (n *ValidName) UnmarshalText(text []byte) error {
	parsed, err := ParseValidName(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
