package walk

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitwalk/internal/landscape"
	"fitwalk/internal/model"
	"fitwalk/internal/search"
	"fitwalk/internal/storage"
)

func newLandscape(t *testing.T, alphabet model.Alphabet, entries map[string]float64) *landscape.Landscape {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(ctx))
	variants := make([]model.Variant, 0, len(entries))
	for seq, fitness := range entries {
		variants = append(variants, model.Variant{Sequence: seq, Fitness: fitness})
	}
	require.NoError(t, store.PutBatch(ctx, variants))
	land, err := landscape.New(landscape.Config{Store: store, Alphabet: alphabet})
	require.NoError(t, err)
	return land
}

// randomEntries populates roughly density of the alphabet^length space.
func randomEntries(rng *rand.Rand, alphabet model.Alphabet, length int, density float64) map[string]float64 {
	entries := make(map[string]float64)
	total := 1
	for i := 0; i < length; i++ {
		total *= alphabet.Size()
	}
	buf := make([]byte, length)
	for n := 0; n < total; n++ {
		rest := n
		for pos := length - 1; pos >= 0; pos-- {
			buf[pos] = alphabet.Symbol(rest % alphabet.Size())
			rest /= alphabet.Size()
		}
		if rng.Float64() < density {
			entries[string(buf)] = rng.Float64() * 10
		}
	}
	return entries
}

func newWalker(t *testing.T, land Landscape) *Walker {
	t.Helper()
	w, err := NewWalker(Config{Landscape: land})
	require.NoError(t, err)
	return w
}

func TestWalkFromSparseLandscape(t *testing.T) {
	land := newLandscape(t, model.DefaultAlphabet(), map[string]float64{"AAAA": 1, "AAAR": 5, "ARAA": 3})

	result, err := newWalker(t, land).Walk(context.Background(), "AAAA")
	require.NoError(t, err)
	assert.Equal(t, "AAAA", result.Start)
	assert.Equal(t, "AAAR", result.Final)
	assert.Equal(t, 1.0, result.StartFitness)
	assert.Equal(t, 5.0, result.FinalFitness)

	positions := make([]int, 0, len(result.Rounds))
	for _, round := range result.Rounds {
		positions = append(positions, round.Position)
	}
	assert.Equal(t, []int{3, 0, 1, 2}, positions)
}

func TestWalkTiedPositionsFixLowestIndex(t *testing.T) {
	land := newLandscape(t, model.DefaultAlphabet(), map[string]float64{"AAAA": 1, "AARA": 5, "RAAA": 5})

	result, err := newWalker(t, land).Walk(context.Background(), "AAAA")
	require.NoError(t, err)
	require.NotEmpty(t, result.Rounds)
	assert.Equal(t, 0, result.Rounds[0].Position)
	assert.Equal(t, "RAAA", result.Rounds[0].Sequence)
	assert.Equal(t, "RAAA", result.Final)
}

func TestWalkMultiRoundClimb(t *testing.T) {
	land := newLandscape(t, model.DefaultAlphabet(), map[string]float64{
		"AAAA": 1,
		"AAAR": 2,
		"ARAR": 4,
		"NRAR": 6,
		"NRDR": 7,
	})

	result, err := newWalker(t, land).Walk(context.Background(), "AAAA")
	require.NoError(t, err)
	assert.Equal(t, "NRDR", result.Final)
	assert.Equal(t, 7.0, result.FinalFitness)
	assert.Equal(t, []model.WalkRound{
		{Round: 1, Position: 3, Sequence: "AAAR", Fitness: 2},
		{Round: 2, Position: 1, Sequence: "ARAR", Fitness: 4},
		{Round: 3, Position: 0, Sequence: "NRAR", Fitness: 6},
		{Round: 4, Position: 2, Sequence: "NRDR", Fitness: 7},
	}, result.Rounds)
}

func TestWalkProperties(t *testing.T) {
	alphabet := model.MustAlphabet("ACGT")
	ctx := context.Background()

	for seed := int64(1); seed <= 5; seed++ {
		entries := randomEntries(rand.New(rand.NewSource(seed)), alphabet, 4, 0.7)
		land := newLandscape(t, alphabet, entries)
		w := newWalker(t, land)

		for start, fitness := range entries {
			result, err := w.Walk(ctx, start)
			require.NoError(t, err)
			require.Len(t, result.Rounds, 4)

			seen := make(map[int]bool)
			prev := fitness
			for _, round := range result.Rounds {
				assert.False(t, seen[round.Position], "position %d fixed twice from %s", round.Position, start)
				assert.GreaterOrEqual(t, round.Position, 0)
				assert.Less(t, round.Position, 4)
				seen[round.Position] = true
				assert.GreaterOrEqual(t, round.Fitness, prev, "fitness decreased from %s", start)
				prev = round.Fitness
			}
			assert.Len(t, seen, 4)
			last := result.Rounds[len(result.Rounds)-1]
			assert.Equal(t, last.Sequence, result.Final)
			assert.Equal(t, last.Fitness, result.FinalFitness)
			assert.Equal(t, entries[result.Final], result.FinalFitness)
		}
	}
}

// Strict optima only: an equal neighbour earlier in the alphabet would win the tie.
func TestWalkFromLocalOptimumStaysPut(t *testing.T) {
	alphabet := model.MustAlphabet("ACGT")
	entries := randomEntries(rand.New(rand.NewSource(42)), alphabet, 4, 0.6)
	land := newLandscape(t, alphabet, entries)
	w := newWalker(t, land)
	ctx := context.Background()

	optima := 0
	for start, fitness := range entries {
		if !isLocalOptimum(t, land, start, fitness) {
			continue
		}
		optima++
		result, err := w.Walk(ctx, start)
		require.NoError(t, err)
		assert.Equal(t, start, result.Final)
		assert.Equal(t, fitness, result.FinalFitness)
	}
	assert.Positive(t, optima)
}

func isLocalOptimum(t *testing.T, land search.Landscape, seq string, fitness float64) bool {
	t.Helper()
	for pos := 0; pos < len(seq); pos++ {
		candidates, err := search.Candidates(land.Alphabet(), seq, pos)
		require.NoError(t, err)
		for _, candidate := range candidates {
			other, ok, err := land.Lookup(context.Background(), candidate)
			require.NoError(t, err)
			if ok && candidate != seq && other >= fitness {
				return false
			}
		}
	}
	return true
}

func TestWalkRejectsUnobservedOrInvalidStart(t *testing.T) {
	land := newLandscape(t, model.DefaultAlphabet(), map[string]float64{"AAAA": 1})
	w := newWalker(t, land)

	_, err := w.Walk(context.Background(), "WWWW")
	assert.True(t, errors.Is(err, ErrUnobservedStart))

	_, err = w.Walk(context.Background(), "AAXA")
	assert.Error(t, err)
}

func TestNewWalkerRequiresLandscape(t *testing.T) {
	_, err := NewWalker(Config{})
	assert.Error(t, err)
}
