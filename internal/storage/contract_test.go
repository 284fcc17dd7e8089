package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitwalk/internal/model"
)

// exerciseStore runs the behaviour every backend must share against an
// initialized store.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.PutBatch(ctx, []model.Variant{
		{Sequence: "ARAA", Fitness: 3},
		{Sequence: "AAAA", Fitness: 1},
		{Sequence: "AAAR", Fitness: 5},
		{Sequence: "VVVV", Fitness: -0.5},
	}))

	fitness, ok, err := store.Get(ctx, "AAAR")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5.0, fitness)

	fitness, ok, err = store.Get(ctx, "VVVV")
	require.NoError(t, err)
	assert.True(t, ok, "negative fitness is a valid observation")
	assert.Equal(t, -0.5, fitness)

	_, ok, err = store.Get(ctx, "WWWW")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutBatch(ctx, []model.Variant{{Sequence: "AAAA", Fitness: 2}}))
	fitness, _, err = store.Get(ctx, "AAAA")
	require.NoError(t, err)
	assert.Equal(t, 2.0, fitness, "later write wins")

	var order []string
	require.NoError(t, store.ForEach(ctx, func(v model.Variant) error {
		order = append(order, v.Sequence)
		return nil
	}))
	assert.Equal(t, []string{"AAAA", "AAAR", "ARAA", "VVVV"}, order)

	stop := errors.New("stop")
	visited := 0
	err = store.ForEach(ctx, func(model.Variant) error {
		visited++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, visited)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	record := model.SweepRecord{
		RunID:        "sweep-1",
		CreatedAtUTC: "2026-01-01T00:00:00Z",
		MaxFitness:   5,
		Complete:     true,
		Results: []model.WalkResult{{
			Start:        "AAAA",
			Final:        "AAAR",
			StartFitness: 1,
			FinalFitness: 5,
			ReachedMax:   true,
			Rounds:       []model.WalkRound{{Round: 1, Position: 3, Sequence: "AAAR", Fitness: 5}},
		}},
	}
	require.NoError(t, store.SaveSweep(ctx, record))
	require.NoError(t, store.SaveSweep(ctx, model.SweepRecord{RunID: "sweep-0", CreatedAtUTC: "2025-01-01T00:00:00Z"}))
	assert.Error(t, store.SaveSweep(ctx, model.SweepRecord{}))

	loaded, ok, err := store.GetSweep(ctx, "sweep-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, CurrentSchemaVersion, loaded.SchemaVersion)
	require.Len(t, loaded.Results, 1)
	assert.Equal(t, "AAAR", loaded.Results[0].Final)
	require.Len(t, loaded.Results[0].Rounds, 1)
	assert.Equal(t, 3, loaded.Results[0].Rounds[0].Position)

	_, ok, err = store.GetSweep(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	sweeps, err := store.ListSweeps(ctx)
	require.NoError(t, err)
	require.Len(t, sweeps, 2)
	assert.Equal(t, "sweep-1", sweeps[0].RunID, "newest sweep first")
	assert.Equal(t, "sweep-0", sweeps[1].RunID)
}
