// Package experiment repeats stochastic strategies and reduces their outputs
// and sweep ledgers to summary statistics.
package experiment

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"fitwalk/internal/model"
	"fitwalk/internal/walk"
)

// Strategy runs one stochastic search and reports the peak fitness it found.
type Strategy func(ctx context.Context, rng *rand.Rand) (float64, error)

type RepeatOptions struct {
	// Seed derives one source per iteration so any single run can be replayed.
	Seed          int64
	ProgressEvery int
	Progress      func(done, total int)
	Logger        *zap.Logger
}

type RepeatSummary struct {
	Times int       `json:"times"`
	Seed  int64     `json:"seed"`
	Runs  []float64 `json:"runs"`
	Mean  float64   `json:"mean"`
	Std   float64   `json:"std"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
}

// IterationSeed is the seed Repeat hands to iteration i.
func IterationSeed(base int64, i int) int64 {
	return base + int64(i)*7919
}

func Repeat(ctx context.Context, strategy Strategy, times int, opts RepeatOptions) (RepeatSummary, error) {
	if strategy == nil {
		return RepeatSummary{}, fmt.Errorf("strategy is required")
	}
	if times <= 0 {
		return RepeatSummary{}, fmt.Errorf("times must be positive: %d", times)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runs := make([]float64, 0, times)
	for i := 0; i < times; i++ {
		if err := ctx.Err(); err != nil {
			return RepeatSummary{}, err
		}
		rng := rand.New(rand.NewSource(IterationSeed(opts.Seed, i)))
		peak, err := strategy(ctx, rng)
		if err != nil {
			return RepeatSummary{}, fmt.Errorf("iteration %d: %w", i, err)
		}
		runs = append(runs, peak)

		done := i + 1
		if opts.ProgressEvery > 0 && done%opts.ProgressEvery == 0 {
			logger.Info("repeat progress", zap.Int("done", done), zap.Int("total", times))
			if opts.Progress != nil {
				opts.Progress(done, times)
			}
		}
	}
	return summarize(runs, opts.Seed), nil
}

func summarize(runs []float64, seed int64) RepeatSummary {
	summary := RepeatSummary{Times: len(runs), Seed: seed, Runs: runs}
	summary.Mean, summary.Std = stat.PopMeanStdDev(runs, nil)
	summary.Min, summary.Max = runs[0], runs[0]
	for _, v := range runs[1:] {
		if v < summary.Min {
			summary.Min = v
		}
		if v > summary.Max {
			summary.Max = v
		}
	}
	return summary
}

type SweepSummary struct {
	Total           int     `json:"total"`
	ReachedMax      int     `json:"reached_max"`
	NotMax          int     `json:"not_max"`
	ReachedMaxRate  float64 `json:"reached_max_rate"`
	UniquePeaks     int     `json:"unique_peaks"`
	MaxFitness      float64 `json:"max_fitness"`
	MeanStart       float64 `json:"mean_start"`
	MeanFinal       float64 `json:"mean_final"`
	MeanImprovement float64 `json:"mean_improvement"`
}

// SweepStats reduces a sweep ledger. Results are reclassified against
// maxFitness by exact equality, so a ledger loaded from storage is judged the
// same way as a fresh one.
func SweepStats(ledger *walk.Ledger, maxFitness float64) SweepSummary {
	if ledger == nil {
		return SweepSummary{MaxFitness: maxFitness}
	}
	return summarizeResults(ledger.Results(), maxFitness)
}

func summarizeResults(results []model.WalkResult, maxFitness float64) SweepSummary {
	stats := SweepSummary{Total: len(results), MaxFitness: maxFitness}
	if len(results) == 0 {
		return stats
	}
	starts := make([]float64, len(results))
	finals := make([]float64, len(results))
	peaks := make(map[string]struct{})
	for i, result := range results {
		starts[i] = result.StartFitness
		finals[i] = result.FinalFitness
		peaks[result.Final] = struct{}{}
		if result.FinalFitness == maxFitness {
			stats.ReachedMax++
		} else {
			stats.NotMax++
		}
	}
	stats.UniquePeaks = len(peaks)
	stats.ReachedMaxRate = float64(stats.ReachedMax) / float64(stats.Total)
	stats.MeanStart = stat.Mean(starts, nil)
	stats.MeanFinal = stat.Mean(finals, nil)
	stats.MeanImprovement = stats.MeanFinal - stats.MeanStart
	return stats
}

type CurvePoint struct {
	SampleSize int     `json:"sample_size"`
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
}

// SampleCurve repeats the strategy built for each sample size and reports the mean
// peak fitness against sample size.
func SampleCurve(ctx context.Context, sizes []int, times int, factory func(sampleSize int) Strategy, opts RepeatOptions) ([]CurvePoint, error) {
	if factory == nil {
		return nil, fmt.Errorf("strategy factory is required")
	}
	points := make([]CurvePoint, 0, len(sizes))
	for _, size := range sizes {
		summary, err := Repeat(ctx, factory(size), times, opts)
		if err != nil {
			return nil, fmt.Errorf("sample size %d: %w", size, err)
		}
		points = append(points, CurvePoint{SampleSize: size, Mean: summary.Mean, Std: summary.Std})
	}
	return points, nil
}
