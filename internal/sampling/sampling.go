// Package sampling draws reproducible uniform samples without replacement.
package sampling

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrSampleTooLarge = errors.New("sample size exceeds population")

// Indices returns k distinct indices drawn uniformly from [0, n) in draw
// order. It runs a partial Fisher-Yates shuffle, so the draw depends only on
// rng's state.
func Indices(rng *rand.Rand, n, k int) ([]int, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("sample size must be positive: %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("%w: want %d of %d", ErrSampleTooLarge, k, n)
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:k], nil
}

// Strings samples k distinct elements of population.
func Strings(rng *rand.Rand, population []string, k int) ([]string, error) {
	idx, err := Indices(rng, len(population), k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = population[j]
	}
	return out, nil
}
