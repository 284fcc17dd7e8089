package surrogate

import (
	"fmt"
	"math/rand"

	"fitwalk/internal/model"
)

// Codebook maps each alphabet symbol to the integer code used as its
// regression feature.
type Codebook struct {
	alphabet model.Alphabet
	codes    []float64
}

// FixedCodebook codes each symbol by its alphabet index.
func FixedCodebook(alphabet model.Alphabet) Codebook {
	codes := make([]float64, alphabet.Size())
	for i := range codes {
		codes[i] = float64(i)
	}
	return Codebook{alphabet: alphabet, codes: codes}
}

// RandomCodebook assigns the same codes as FixedCodebook in a random order,
// which checks whether the ordinal coding biases the regression.
func RandomCodebook(alphabet model.Alphabet, rng *rand.Rand) Codebook {
	perm := rng.Perm(alphabet.Size())
	codes := make([]float64, len(perm))
	for i, code := range perm {
		codes[i] = float64(code)
	}
	return Codebook{alphabet: alphabet, codes: codes}
}

func (c Codebook) Code(symbol byte) (float64, bool) {
	i := c.alphabet.Index(symbol)
	if i < 0 {
		return 0, false
	}
	return c.codes[i], true
}

// Encode turns seq into one feature per position.
func (c Codebook) Encode(seq string) ([]float64, error) {
	out := make([]float64, len(seq))
	for pos := 0; pos < len(seq); pos++ {
		code, ok := c.Code(seq[pos])
		if !ok {
			return nil, fmt.Errorf("sequence %q has symbol %q outside alphabet", seq, seq[pos])
		}
		out[pos] = code
	}
	return out, nil
}
