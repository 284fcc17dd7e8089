// Package walk runs greedy adaptive walks that fix one sequence position per
// round, and sweeps them over an entire landscape.
package walk

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fitwalk/internal/model"
	"fitwalk/internal/search"
)

var ErrUnobservedStart = errors.New("walk start is not in the landscape")

// Landscape is the read surface walks and sweeps need.
type Landscape interface {
	search.Landscape
	Sequences(ctx context.Context) ([]string, error)
	MaxFitness(ctx context.Context) (float64, error)
}

type Config struct {
	Landscape Landscape
	Logger    *zap.Logger
}

type Walker struct {
	land   Landscape
	logger *zap.Logger
}

func NewWalker(cfg Config) (*Walker, error) {
	if cfg.Landscape == nil {
		return nil, fmt.Errorf("landscape is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{land: cfg.Landscape, logger: logger}, nil
}

// Walk climbs from start for len(start) rounds. Each round searches every
// position not fixed by an earlier round against the current sequence, fixes
// the position whose best substitution is fittest (lowest index on ties) and
// moves to that substitution. ReachedMax is left for the caller to classify.
func (w *Walker) Walk(ctx context.Context, start string) (model.WalkResult, error) {
	if err := w.land.Alphabet().Validate(start, 0); err != nil {
		return model.WalkResult{}, err
	}
	origin, err := search.Evaluate(ctx, w.land, start)
	if err != nil {
		return model.WalkResult{}, err
	}
	if !origin.Observed {
		return model.WalkResult{}, fmt.Errorf("%w: %s", ErrUnobservedStart, start)
	}

	length := len(start)
	fixed := make([]bool, length)
	current := origin
	rounds := make([]model.WalkRound, 0, length)

	for round := 1; round <= length; round++ {
		if err := ctx.Err(); err != nil {
			return model.WalkResult{}, err
		}

		bestPos := -1
		var best search.Candidate
		for pos := 0; pos < length; pos++ {
			if fixed[pos] {
				continue
			}
			candidate, err := search.BestSubstitution(ctx, w.land, current.Sequence, pos)
			if err != nil {
				return model.WalkResult{}, err
			}
			if bestPos < 0 || candidate.Beats(best) {
				bestPos = pos
				best = candidate
			}
		}

		fixed[bestPos] = true
		w.logger.Debug("walk round",
			zap.String("start", start),
			zap.Int("round", round),
			zap.Int("position", bestPos),
			zap.String("from", current.Sequence),
			zap.String("to", best.Sequence),
			zap.Float64("fitness", best.Fitness),
		)
		current = best
		rounds = append(rounds, model.WalkRound{
			Round:    round,
			Position: bestPos,
			Sequence: current.Sequence,
			Fitness:  current.Fitness,
		})
	}

	return model.WalkResult{
		Start:        start,
		Final:        current.Sequence,
		StartFitness: origin.Fitness,
		FinalFitness: current.Fitness,
		Rounds:       rounds,
	}, nil
}
