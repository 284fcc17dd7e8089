package walk

import (
	"context"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"fitwalk/internal/model"
)

type SweepOptions struct {
	// Workers above one walks starts concurrently; result order in the
	// ledger then follows completion order.
	Workers int
	// ProgressEvery reports progress after that many completed walks.
	ProgressEvery int
	Progress      func(done, total int)
	// KeepRounds retains per-round traces in the ledger.
	KeepRounds bool
	// Ledger resumes a previous sweep; starts it already holds are skipped.
	Ledger *Ledger
}

// Sweep walks from every sequence in the landscape and records each result.
// Cancelling ctx stops the sweep between walks; the returned ledger holds
// every result recorded before that, alongside ctx's error.
func (w *Walker) Sweep(ctx context.Context, opts SweepOptions) (*Ledger, error) {
	ledger := opts.Ledger
	if ledger == nil {
		ledger = NewLedger()
	}

	starts, err := w.land.Sequences(ctx)
	if err != nil {
		return ledger, err
	}
	maxFitness, err := w.land.MaxFitness(ctx)
	if err != nil {
		return ledger, err
	}

	pending := make([]string, 0, len(starts))
	for _, start := range starts {
		if !ledger.Has(start) {
			pending = append(pending, start)
		}
	}

	total := len(starts)
	progress := newProgress(opts, w.logger, total, total-len(pending))

	walkOne := func(ctx context.Context, start string) error {
		result, err := w.Walk(ctx, start)
		if err != nil {
			return err
		}
		result.ReachedMax = result.FinalFitness == maxFitness
		if !opts.KeepRounds {
			result.Rounds = nil
		}
		if err := ledger.Record(result); err != nil {
			return err
		}
		progress.step()
		return nil
	}

	workers := opts.Workers
	if workers <= 1 {
		for _, start := range pending {
			if err := ctx.Err(); err != nil {
				return ledger, err
			}
			if err := walkOne(ctx, start); err != nil {
				return ledger, err
			}
		}
		return ledger, nil
	}

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, start := range pending {
		if ctx.Err() != nil {
			break
		}
		start := start
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return walkOne(ctx, start)
		})
	}
	err = p.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ledger, ctxErr
	}
	return ledger, err
}

type progress struct {
	mu     sync.Mutex
	every  int
	notify func(done, total int)
	logger *zap.Logger
	done   int
	total  int
}

func newProgress(opts SweepOptions, logger *zap.Logger, total, done int) *progress {
	return &progress{every: opts.ProgressEvery, notify: opts.Progress, logger: logger, total: total, done: done}
}

func (p *progress) step() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if p.every <= 0 || p.done%p.every != 0 {
		return
	}
	p.logger.Info("sweep progress",
		zap.String("done", humanize.Comma(int64(p.done))),
		zap.String("total", humanize.Comma(int64(p.total))),
	)
	if p.notify != nil {
		p.notify(p.done, p.total)
	}
}

// Record converts a ledger into its persistable form.
func Record(runID, createdAtUTC string, maxFitness float64, complete bool, ledger *Ledger) model.SweepRecord {
	return model.SweepRecord{
		RunID:        runID,
		CreatedAtUTC: createdAtUTC,
		MaxFitness:   maxFitness,
		Complete:     complete,
		Results:      ledger.Results(),
	}
}
