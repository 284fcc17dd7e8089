package storage

import (
	"context"

	"fitwalk/internal/model"
)

// Store is the persistent landscape: a sequence-keyed table of fitness values
// plus the sweep ledgers recorded against it.
//
// Get reports a key that was never written with ok=false; it never invents a
// fitness for it. ForEach visits entries in ascending sequence order so that
// sampling over the enumeration is reproducible within and across runs.
type Store interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, sequence string) (float64, bool, error)
	PutBatch(ctx context.Context, variants []model.Variant) error
	ForEach(ctx context.Context, fn func(model.Variant) error) error
	Count(ctx context.Context) (int, error)
	SaveSweep(ctx context.Context, record model.SweepRecord) error
	GetSweep(ctx context.Context, runID string) (model.SweepRecord, bool, error)
	ListSweeps(ctx context.Context) ([]model.SweepRecord, error)
}
