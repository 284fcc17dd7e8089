package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitwalk/internal/model"
)

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Init(context.Background()))
	exerciseStore(t, store)
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	_, _, err := store.Get(context.Background(), "AAAA")
	assert.Error(t, err)
	assert.Error(t, store.PutBatch(context.Background(), []model.Variant{{Sequence: "AAAA"}}))
}

func TestMemoryStoreForEachHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.PutBatch(ctx, []model.Variant{{Sequence: "AAAA"}, {Sequence: "AAAR"}}))

	seen := 0
	err := store.ForEach(ctx, func(model.Variant) error {
		seen++
		cancel()
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 1, seen)
}

func TestMemoryStoreSweepIsCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	results := []model.WalkResult{{Start: "AAAA", Final: "AAAR"}}
	require.NoError(t, store.SaveSweep(ctx, model.SweepRecord{RunID: "r1", Results: results}))
	results[0].Final = "mutated"

	loaded, _, err := store.GetSweep(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "AAAR", loaded.Results[0].Final, "stored sweep must not alias the caller's slice")
}
