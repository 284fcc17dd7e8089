package model

import (
	"fmt"
	"strings"
)

// AminoAcids is the one-letter amino acid alphabet in the order candidates are
// enumerated; earlier symbols win fitness ties.
const AminoAcids = "ARNDCEQGHILKMFPSTWYV"

// Alphabet is an ordered set of single-byte symbols.
type Alphabet struct {
	symbols string
	index   [256]int
}

func NewAlphabet(symbols string) (Alphabet, error) {
	if symbols == "" {
		return Alphabet{}, fmt.Errorf("alphabet must not be empty")
	}
	a := Alphabet{symbols: symbols}
	for i := range a.index {
		a.index[i] = -1
	}
	for i := 0; i < len(symbols); i++ {
		c := symbols[i]
		if c > 127 {
			return Alphabet{}, fmt.Errorf("alphabet symbol %q is not ascii", c)
		}
		if a.index[c] >= 0 {
			return Alphabet{}, fmt.Errorf("duplicate alphabet symbol %q", c)
		}
		a.index[c] = i
	}
	return a, nil
}

// MustAlphabet is NewAlphabet for package-level constants.
func MustAlphabet(symbols string) Alphabet {
	a, err := NewAlphabet(symbols)
	if err != nil {
		panic(err)
	}
	return a
}

func DefaultAlphabet() Alphabet {
	return MustAlphabet(AminoAcids)
}

func (a Alphabet) Size() int {
	return len(a.symbols)
}

func (a Alphabet) Symbols() string {
	return a.symbols
}

func (a Alphabet) Symbol(i int) byte {
	return a.symbols[i]
}

// Index returns the alphabet position of c, or -1.
func (a Alphabet) Index(c byte) int {
	if a.symbols == "" {
		return -1
	}
	return a.index[c]
}

func (a Alphabet) Contains(c byte) bool {
	return a.Index(c) >= 0
}

// Validate checks seq has the given length and uses only alphabet symbols.
// A length of zero skips the length check.
func (a Alphabet) Validate(seq string, length int) error {
	if seq == "" {
		return fmt.Errorf("sequence must not be empty")
	}
	if length > 0 && len(seq) != length {
		return fmt.Errorf("sequence %q has length %d, want %d", seq, len(seq), length)
	}
	for i := 0; i < len(seq); i++ {
		if !a.Contains(seq[i]) {
			return fmt.Errorf("sequence %q has symbol %q outside alphabet at position %d", seq, seq[i], i)
		}
	}
	return nil
}

// Normalize upper-cases and trims raw sequence text from input tables.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Substitute returns seq with position pos replaced by sym.
func Substitute(seq string, pos int, sym byte) string {
	b := []byte(seq)
	b[pos] = sym
	return string(b)
}
