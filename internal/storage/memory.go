package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"fitwalk/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	fitness     map[string]float64
	sorted      []string
	sweeps      map[string]model.SweepRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.fitness = make(map[string]float64)
	s.sweeps = make(map[string]model.SweepRecord)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sequence string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return 0, false, errNotInitialized
	}
	fitness, ok := s.fitness[sequence]
	return fitness, ok, nil
}

func (s *MemoryStore) PutBatch(_ context.Context, variants []model.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	for _, variant := range variants {
		if _, exists := s.fitness[variant.Sequence]; !exists {
			s.sorted = nil
		}
		s.fitness[variant.Sequence] = variant.Fitness
	}
	return nil
}

func (s *MemoryStore) ForEach(ctx context.Context, fn func(model.Variant) error) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return errNotInitialized
	}
	if s.sorted == nil {
		s.sorted = make([]string, 0, len(s.fitness))
		for sequence := range s.fitness {
			s.sorted = append(s.sorted, sequence)
		}
		sort.Strings(s.sorted)
	}
	snapshot := make([]model.Variant, len(s.sorted))
	for i, sequence := range s.sorted {
		snapshot[i] = model.Variant{Sequence: sequence, Fitness: s.fitness[sequence]}
	}
	s.mu.Unlock()

	for _, variant := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(variant); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return 0, errNotInitialized
	}
	return len(s.fitness), nil
}

func (s *MemoryStore) SaveSweep(_ context.Context, record model.SweepRecord) error {
	if record.RunID == "" {
		return errors.New("sweep run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	stampVersion(&record)
	record.Results = append([]model.WalkResult(nil), record.Results...)
	s.sweeps[record.RunID] = record
	return nil
}

func (s *MemoryStore) GetSweep(_ context.Context, runID string) (model.SweepRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.SweepRecord{}, false, errNotInitialized
	}
	record, ok := s.sweeps[runID]
	if !ok {
		return model.SweepRecord{}, false, nil
	}
	record.Results = append([]model.WalkResult(nil), record.Results...)
	return record, true, nil
}

func (s *MemoryStore) ListSweeps(_ context.Context) ([]model.SweepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized
	}
	records := make([]model.SweepRecord, 0, len(s.sweeps))
	for _, record := range s.sweeps {
		record.Results = append([]model.WalkResult(nil), record.Results...)
		records = append(records, record)
	}
	sortSweeps(records)
	return records, nil
}

var errNotInitialized = errors.New("store is not initialized")

// sortSweeps orders newest first, then by run id.
func sortSweeps(records []model.SweepRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAtUTC == records[j].CreatedAtUTC {
			return records[i].RunID < records[j].RunID
		}
		return records[i].CreatedAtUTC > records[j].CreatedAtUTC
	})
}
