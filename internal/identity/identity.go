// Package identity normalizes hardware identifiers (MAC addresses) scraped
// from device consoles or read from the baseline export.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// HexDigits is the number of hex digits in a valid identifier.
const HexDigits = 12

// ErrInvalid is matched by every NormalizationError.
var ErrInvalid = errors.New("invalid identity")

// NormalizationError reports an identifier that does not reduce to
// exactly HexDigits hex digits.
type NormalizationError struct {
	Input  string
	Digits int
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("identity %q has %d hex digits, want %d", e.Input, e.Digits, HexDigits)
}

func (e *NormalizationError) Is(target error) bool {
	return target == ErrInvalid
}

// Mode selects how callers treat a failed normalization.
type Mode int

const (
	// Strict discards records whose identity cannot be normalized.
	Strict Mode = iota
	// Tolerant keeps them with an empty canonical identity.
	Tolerant
)

// Result is the outcome of normalizing one identifier.
type Result struct {
	Canonical string // "AA:BB:CC:DD:EE:FF", empty on failure
	Raw       string // stripped lowercase hex digits
}

// Normalize strips every non-hex character, lower-cases the rest and, when
// exactly 12 digits remain, returns them grouped as six uppercase pairs
// joined by colons. Raw is populated even when err is non-nil.
func Normalize(s string) (Result, error) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
			b.WriteRune(r)
		case r >= 'A' && r <= 'F':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	raw := b.String()
	if len(raw) != HexDigits {
		return Result{Raw: raw}, &NormalizationError{Input: s, Digits: len(raw)}
	}

	upper := strings.ToUpper(raw)
	pairs := make([]string, 0, HexDigits/2)
	for i := 0; i < HexDigits; i += 2 {
		pairs = append(pairs, upper[i:i+2])
	}
	return Result{Canonical: strings.Join(pairs, ":"), Raw: raw}, nil
}

// Apply normalizes s under mode. In Strict mode ok is false on failure and
// the record should be dropped; in Tolerant mode ok is always true and a
// failed identifier yields an empty Canonical.
func Apply(s string, mode Mode) (res Result, ok bool) {
	res, err := Normalize(s)
	if err == nil {
		return res, true
	}
	return res, mode == Tolerant
}

// IsCanonical reports whether s is already in canonical form.
func IsCanonical(s string) bool {
	if len(s) != 17 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if i%3 == 2 {
			if c != ':' {
				return false
			}
			continue
		}
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
