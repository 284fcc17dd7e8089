// Package ingest populates a landscape store from screened and fitted
// variant tables.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"fitwalk/internal/model"
	"fitwalk/internal/storage"
)

// Precedence decides which table's value survives when both tables carry the
// same sequence.
type Precedence string

const (
	FittedWins   Precedence = "fitted-wins"
	ScreenedWins Precedence = "screened-wins"
)

const (
	DefaultBatchSize     = 1000
	DefaultProgressEvery = 1000
)

func ParsePrecedence(raw string) (Precedence, error) {
	switch Precedence(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FittedWins:
		return FittedWins, nil
	case ScreenedWins:
		return ScreenedWins, nil
	}
	return "", fmt.Errorf("unknown precedence %q", raw)
}

type Options struct {
	Store    storage.Store
	Alphabet model.Alphabet
	// Length fixes the sequence length; 0 takes it from the first row read.
	Length int

	Screened   TableSpec
	Fitted     TableSpec
	Precedence Precedence

	BatchSize     int
	ProgressEvery int
	Logger        *zap.Logger
}

type Summary struct {
	Screened int `json:"screened"`
	Fitted   int `json:"fitted"`
	Stored   int `json:"stored"`
}

// Ingest reads the configured tables and writes them to the store. Either
// table may be omitted by leaving its path empty.
func Ingest(ctx context.Context, opts Options) (Summary, error) {
	if opts.Store == nil {
		return Summary{}, fmt.Errorf("store is required")
	}
	if opts.Screened.Path == "" && opts.Fitted.Path == "" {
		return Summary{}, fmt.Errorf("at least one of screened or fitted table is required")
	}
	precedence, err := ParsePrecedence(string(opts.Precedence))
	if err != nil {
		return Summary{}, err
	}
	if opts.Alphabet.Size() == 0 {
		opts.Alphabet = model.DefaultAlphabet()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Screened.FitnessColumn == "" {
		opts.Screened.FitnessColumn = ColumnFitness
	}
	if opts.Fitted.FitnessColumn == "" {
		opts.Fitted.FitnessColumn = ColumnImputed
	}
	if err := opts.Store.Init(ctx); err != nil {
		return Summary{}, err
	}

	type source struct {
		label string
		spec  TableSpec
		count *int
	}
	var summary Summary
	// The table written last wins.
	order := []source{
		{label: "screened", spec: opts.Screened, count: &summary.Screened},
		{label: "fitted", spec: opts.Fitted, count: &summary.Fitted},
	}
	if precedence == ScreenedWins {
		order[0], order[1] = order[1], order[0]
	}

	length := opts.Length
	for _, src := range order {
		if src.spec.Path == "" {
			continue
		}
		logger.Info("reading table", zap.String("table", src.label), zap.String("path", src.spec.Path))
		variants, err := ReadTable(src.spec, opts.Alphabet, length)
		if err != nil {
			return summary, fmt.Errorf("%s table: %w", src.label, err)
		}
		if length == 0 && len(variants) > 0 {
			length = len(variants[0].Sequence)
		}
		if err := write(ctx, opts, logger, src.label, variants); err != nil {
			return summary, fmt.Errorf("%s table: %w", src.label, err)
		}
		*src.count = len(variants)
	}

	stored, err := opts.Store.Count(ctx)
	if err != nil {
		return summary, err
	}
	summary.Stored = stored
	logger.Info("ingest complete",
		zap.String("screened", humanize.Comma(int64(summary.Screened))),
		zap.String("fitted", humanize.Comma(int64(summary.Fitted))),
		zap.String("stored", humanize.Comma(int64(summary.Stored))),
		zap.String("precedence", string(precedence)),
	)
	return summary, nil
}

func write(ctx context.Context, opts Options, logger *zap.Logger, label string, variants []model.Variant) error {
	total := len(variants)
	lastReported := 0
	for start := 0; start < total; start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + opts.BatchSize
		if end > total {
			end = total
		}
		if err := opts.Store.PutBatch(ctx, variants[start:end]); err != nil {
			return err
		}
		if end/opts.ProgressEvery > lastReported/opts.ProgressEvery {
			logger.Info("ingest progress",
				zap.String("table", label),
				zap.String("done", humanize.Comma(int64(end))),
				zap.String("total", humanize.Comma(int64(total))),
			)
			lastReported = end
		}
	}
	return nil
}
