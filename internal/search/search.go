// Package search implements single-position exhaustive substitution search.
package search

import (
	"context"
	"fmt"
	"math"

	"fitwalk/internal/model"
)

// Unobserved is the score reported for candidates missing from the
// landscape. It orders below every finite fitness, including negative ones.
var Unobserved = math.Inf(-1)

// Landscape is the read surface the search needs.
type Landscape interface {
	Alphabet() model.Alphabet
	Lookup(ctx context.Context, seq string) (float64, bool, error)
}

type Candidate struct {
	Sequence string
	Fitness  float64
	Observed bool
}

// Beats reports whether c should replace other as the running best. Only a
// strict improvement replaces, so the earlier candidate keeps a tie.
func (c Candidate) Beats(other Candidate) bool {
	if c.Observed != other.Observed {
		return c.Observed
	}
	if !c.Observed {
		return false
	}
	return c.Fitness > other.Fitness
}

// Candidates lists the single-substitution variants of seq at pos in alphabet
// order, including seq itself.
func Candidates(alphabet model.Alphabet, seq string, pos int) ([]string, error) {
	if pos < 0 || pos >= len(seq) {
		return nil, fmt.Errorf("position %d out of range for sequence %q", pos, seq)
	}
	out := make([]string, alphabet.Size())
	for i := range out {
		out[i] = model.Substitute(seq, pos, alphabet.Symbol(i))
	}
	return out, nil
}

// BestSubstitution evaluates every alphabet symbol at pos and returns the
// fittest candidate. When nothing at the position is observed the first
// candidate is returned with Observed unset.
func BestSubstitution(ctx context.Context, land Landscape, seq string, pos int) (Candidate, error) {
	candidates, err := Candidates(land.Alphabet(), seq, pos)
	if err != nil {
		return Candidate{}, err
	}

	var best Candidate
	for i, sequence := range candidates {
		candidate, err := Evaluate(ctx, land, sequence)
		if err != nil {
			return Candidate{}, err
		}
		if i == 0 || candidate.Beats(best) {
			best = candidate
		}
	}
	return best, nil
}

// Evaluate looks up a single sequence as a Candidate.
func Evaluate(ctx context.Context, land Landscape, seq string) (Candidate, error) {
	fitness, ok, err := land.Lookup(ctx, seq)
	if err != nil {
		return Candidate{}, fmt.Errorf("lookup %s: %w", seq, err)
	}
	if !ok {
		return Candidate{Sequence: seq, Fitness: Unobserved}, nil
	}
	return Candidate{Sequence: seq, Fitness: fitness, Observed: true}, nil
}
