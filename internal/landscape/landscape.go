// Package landscape is the read-only view of a fitness landscape held for one
// analysis session. It memoises the enumeration order and the global maximum
// so strategies can share them without recomputation.
package landscape

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fitwalk/internal/model"
	"fitwalk/internal/storage"
)

var ErrEmptyLandscape = errors.New("landscape has no populated sequences")

type Config struct {
	Store    storage.Store
	Alphabet model.Alphabet
	// Length is the sequence length; zero infers it from the first entry.
	Length int
}

type Landscape struct {
	store    storage.Store
	alphabet model.Alphabet

	mu         sync.Mutex
	length     int
	loaded     bool
	variants   []model.Variant
	maxFitness float64
}

func New(cfg Config) (*Landscape, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("landscape store is required")
	}
	if cfg.Length < 0 {
		return nil, fmt.Errorf("invalid sequence length: %d", cfg.Length)
	}
	alphabet := cfg.Alphabet
	if alphabet.Size() == 0 {
		alphabet = model.DefaultAlphabet()
	}
	return &Landscape{store: cfg.Store, alphabet: alphabet, length: cfg.Length}, nil
}

func (l *Landscape) Alphabet() model.Alphabet {
	return l.alphabet
}

// Length returns the sequence length, loading the enumeration if it has to
// be inferred.
func (l *Landscape) Length(ctx context.Context) (int, error) {
	if err := l.load(ctx); err != nil {
		return 0, err
	}
	return l.length, nil
}

// Lookup returns the fitness of seq and whether it was observed. An
// unobserved sequence has no fitness; callers pick their own policy for it.
func (l *Landscape) Lookup(ctx context.Context, seq string) (float64, bool, error) {
	return l.store.Get(ctx, seq)
}

// Variants returns every populated entry in the store's stable order. The
// returned slice is shared and must not be modified.
func (l *Landscape) Variants(ctx context.Context) ([]model.Variant, error) {
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	return l.variants, nil
}

func (l *Landscape) Sequences(ctx context.Context) ([]string, error) {
	variants, err := l.Variants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(variants))
	for i, v := range variants {
		out[i] = v.Sequence
	}
	return out, nil
}

func (l *Landscape) MaxFitness(ctx context.Context) (float64, error) {
	if err := l.load(ctx); err != nil {
		return 0, err
	}
	return l.maxFitness, nil
}

func (l *Landscape) load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return nil
	}

	length := l.length
	var variants []model.Variant
	maxFitness := 0.0
	err := l.store.ForEach(ctx, func(v model.Variant) error {
		if length == 0 {
			length = len(v.Sequence)
		}
		if err := l.alphabet.Validate(v.Sequence, length); err != nil {
			return err
		}
		if err := model.CheckFitness(v.Fitness); err != nil {
			return fmt.Errorf("sequence %s: %w", v.Sequence, err)
		}
		if len(variants) == 0 || v.Fitness > maxFitness {
			maxFitness = v.Fitness
		}
		variants = append(variants, v)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load landscape: %w", err)
	}
	if len(variants) == 0 {
		return ErrEmptyLandscape
	}

	l.length = length
	l.variants = variants
	l.maxFitness = maxFitness
	l.loaded = true
	return nil
}
