// Package recombine builds combinatorial recombination libraries from the
// fittest members of a random sample and evaluates them against a landscape.
package recombine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"fitwalk/internal/model"
	"fitwalk/internal/sampling"
	"fitwalk/internal/search"
)

const (
	DefaultTopK = 3
	// NoVariantFitness is reported when no library member is observed.
	NoVariantFitness = -1.0
)

type Landscape interface {
	search.Landscape
	Sequences(ctx context.Context) ([]string, error)
}

type Config struct {
	Landscape Landscape
	Logger    *zap.Logger
}

type Builder struct {
	land   Landscape
	logger *zap.Logger
}

type Result struct {
	Best        string
	Fitness     float64
	Found       bool
	Seeds       []model.Variant
	LibrarySize int
	Observed    int
}

func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.Landscape == nil {
		return nil, fmt.Errorf("landscape is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{land: cfg.Landscape, logger: logger}, nil
}

// BuildAndEvaluate samples sampleSize sequences from pool (the whole
// landscape when pool is nil), recombines the topK fittest of them and
// returns the fittest observed library member.
func (b *Builder) BuildAndEvaluate(ctx context.Context, pool []string, sampleSize, topK int, rng *rand.Rand) (Result, error) {
	if topK <= 0 {
		return Result{}, fmt.Errorf("top-k must be positive: %d", topK)
	}
	if pool == nil {
		sequences, err := b.land.Sequences(ctx)
		if err != nil {
			return Result{}, err
		}
		pool = sequences
	}

	sample, err := sampling.Strings(rng, pool, sampleSize)
	if err != nil {
		return Result{}, err
	}
	seeds, err := b.TopSeeds(ctx, sample, topK)
	if err != nil {
		return Result{}, err
	}
	result := Result{Fitness: NoVariantFitness, Seeds: seeds}
	if len(seeds) == 0 {
		return result, nil
	}

	seedSeqs := make([]string, len(seeds))
	for i, seed := range seeds {
		seedSeqs[i] = seed.Sequence
	}
	library, err := Library(b.land.Alphabet(), seedSeqs)
	if err != nil {
		return Result{}, err
	}
	result.LibrarySize = len(library)

	var best search.Candidate
	for _, member := range library {
		candidate, err := search.Evaluate(ctx, b.land, member)
		if err != nil {
			return Result{}, err
		}
		if !candidate.Observed {
			continue
		}
		result.Observed++
		if !result.Found || candidate.Beats(best) {
			best = candidate
			result.Found = true
		}
	}
	if result.Found {
		result.Best = best.Sequence
		result.Fitness = best.Fitness
	}

	b.logger.Debug("recombination library evaluated",
		zap.Int("sample", sampleSize),
		zap.Int("library", result.LibrarySize),
		zap.Int("observed", result.Observed),
		zap.String("best", result.Best),
		zap.Float64("fitness", result.Fitness),
	)
	return result, nil
}

// TopSeeds returns the k fittest observed sequences of sample, fittest first.
// Equal fitness is broken by ascending sequence so the selection does not
// depend on sample order. Unobserved sample members are never seeds.
func (b *Builder) TopSeeds(ctx context.Context, sample []string, k int) ([]model.Variant, error) {
	scored := make([]model.Variant, 0, len(sample))
	for _, seq := range sample {
		fitness, ok, err := b.land.Lookup(ctx, seq)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", seq, err)
		}
		if ok {
			scored = append(scored, model.Variant{Sequence: seq, Fitness: fitness})
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Fitness == scored[j].Fitness {
			return scored[i].Sequence < scored[j].Sequence
		}
		return scored[i].Fitness > scored[j].Fitness
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Library returns the cross product of the symbols seen at each position
// across seeds. Symbols at a position are merged and ordered by the alphabet,
// so members are distinct and enumerated deterministically.
func Library(alphabet model.Alphabet, seeds []string) ([]string, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	length := len(seeds[0])
	for _, seed := range seeds {
		if err := alphabet.Validate(seed, length); err != nil {
			return nil, fmt.Errorf("recombination seed: %w", err)
		}
	}

	choices := make([][]byte, length)
	size := 1
	for pos := 0; pos < length; pos++ {
		present := make([]bool, alphabet.Size())
		for _, seed := range seeds {
			present[alphabet.Index(seed[pos])] = true
		}
		for i, ok := range present {
			if ok {
				choices[pos] = append(choices[pos], alphabet.Symbol(i))
			}
		}
		size *= len(choices[pos])
	}

	library := make([]string, 0, size)
	odometer := make([]int, length)
	member := make([]byte, length)
	for {
		for pos := range member {
			member[pos] = choices[pos][odometer[pos]]
		}
		library = append(library, string(member))

		pos := length - 1
		for ; pos >= 0; pos-- {
			odometer[pos]++
			if odometer[pos] < len(choices[pos]) {
				break
			}
			odometer[pos] = 0
		}
		if pos < 0 {
			return library, nil
		}
	}
}
