package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitwalk/internal/landscape"
	"fitwalk/internal/model"
	"fitwalk/internal/storage"
)

func newLandscape(t *testing.T, entries map[string]float64) *landscape.Landscape {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(ctx))
	variants := make([]model.Variant, 0, len(entries))
	for seq, fitness := range entries {
		variants = append(variants, model.Variant{Sequence: seq, Fitness: fitness})
	}
	require.NoError(t, store.PutBatch(ctx, variants))
	land, err := landscape.New(landscape.Config{Store: store})
	require.NoError(t, err)
	return land
}

func TestBestSubstitutionPicksObservedMaximum(t *testing.T) {
	land := newLandscape(t, map[string]float64{"AAAA": 1, "AAAR": 5, "ARAA": 3})
	ctx := context.Background()

	best, err := BestSubstitution(ctx, land, "AAAA", 3)
	require.NoError(t, err)
	assert.Equal(t, Candidate{Sequence: "AAAR", Fitness: 5, Observed: true}, best)

	best, err = BestSubstitution(ctx, land, "AAAA", 1)
	require.NoError(t, err)
	assert.Equal(t, Candidate{Sequence: "ARAA", Fitness: 3, Observed: true}, best)

	best, err = BestSubstitution(ctx, land, "AAAA", 0)
	require.NoError(t, err)
	assert.Equal(t, "AAAA", best.Sequence, "only the no-op candidate is observed")
}

func TestBestSubstitutionTieGoesToEarlierSymbol(t *testing.T) {
	// Alphabet order is A R N D ...; N precedes D.
	land := newLandscape(t, map[string]float64{"AAAD": 4, "AAAN": 4, "AAAA": 1})

	best, err := BestSubstitution(context.Background(), land, "AAAA", 3)
	require.NoError(t, err)
	assert.Equal(t, "AAAN", best.Sequence)
}

func TestBestSubstitutionNegativeFitnessBeatsUnobserved(t *testing.T) {
	land := newLandscape(t, map[string]float64{"AAAV": -7})

	best, err := BestSubstitution(context.Background(), land, "AAAA", 3)
	require.NoError(t, err)
	assert.True(t, best.Observed)
	assert.Equal(t, "AAAV", best.Sequence)
	assert.Equal(t, -7.0, best.Fitness)
}

func TestBestSubstitutionAllUnobserved(t *testing.T) {
	land := newLandscape(t, map[string]float64{"WWWW": 1})

	best, err := BestSubstitution(context.Background(), land, "CCCC", 2)
	require.NoError(t, err)
	assert.False(t, best.Observed)
	assert.Equal(t, "CCAC", best.Sequence)
	assert.Equal(t, Unobserved, best.Fitness)
}

func TestBestSubstitutionNeverWorseThanStart(t *testing.T) {
	entries := map[string]float64{
		"AAAA": 2, "RAAA": 1, "ANAA": 9, "AADA": 0.5, "AAAC": 2,
		"CAAA": 2.5, "ARAA": 0, "AAQA": 3, "AAAE": 1.5,
	}
	land := newLandscape(t, entries)
	ctx := context.Background()

	for seq, fitness := range entries {
		for pos := 0; pos < 4; pos++ {
			best, err := BestSubstitution(ctx, land, seq, pos)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, best.Fitness, fitness, "seq=%s pos=%d", seq, pos)
		}
	}
}

func TestBestSubstitutionRejectsBadPosition(t *testing.T) {
	land := newLandscape(t, map[string]float64{"AAAA": 1})

	_, err := BestSubstitution(context.Background(), land, "AAAA", 4)
	assert.Error(t, err)
	_, err = BestSubstitution(context.Background(), land, "AAAA", -1)
	assert.Error(t, err)
}

type failingLandscape struct{}

func (failingLandscape) Alphabet() model.Alphabet { return model.DefaultAlphabet() }

func (failingLandscape) Lookup(context.Context, string) (float64, bool, error) {
	return 0, false, errors.New("disk gone")
}

func TestBestSubstitutionPropagatesStoreErrors(t *testing.T) {
	_, err := BestSubstitution(context.Background(), failingLandscape{}, "AAAA", 0)
	assert.ErrorContains(t, err, "disk gone")
}

func TestCandidatesIncludeNoOp(t *testing.T) {
	candidates, err := Candidates(model.DefaultAlphabet(), "KLMN", 2)
	require.NoError(t, err)
	require.Len(t, candidates, 20)
	assert.Contains(t, candidates, "KLMN")
	assert.Equal(t, "KLAN", candidates[0])
}

func TestCandidateBeats(t *testing.T) {
	observed := Candidate{Fitness: -1, Observed: true}
	missing := Candidate{Fitness: Unobserved}
	assert.True(t, observed.Beats(missing))
	assert.False(t, missing.Beats(observed))
	assert.False(t, missing.Beats(missing))
	assert.False(t, observed.Beats(observed))
	assert.True(t, Candidate{Fitness: 0, Observed: true}.Beats(observed))
}
