package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"fitwalk/internal/model"
)

// Key prefixes inside the badger keyspace.
const (
	prefixLandscape = "lsv:"
	prefixSweep     = "sweep:"
)

// BadgerStore persists the landscape in a badger directory. Keys sort
// bytewise, so prefix iteration yields sequences in ascending order.
type BadgerStore struct {
	path     string
	inMemory bool

	mu sync.RWMutex
	db *badger.DB
}

func NewBadgerStore(path string) *BadgerStore {
	return &BadgerStore{path: path}
}

// NewInMemoryBadgerStore runs badger without touching disk.
func NewInMemoryBadgerStore() *BadgerStore {
	return &BadgerStore{inMemory: true}
}

func (s *BadgerStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	var opts badger.Options
	if s.inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if s.path == "" {
			return errors.New("badger path is required")
		}
		opts = badger.DefaultOptions(s.path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger %s: %w", s.path, err)
	}
	s.db = db
	return nil
}

func (s *BadgerStore) Get(_ context.Context, sequence string) (float64, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, false, err
	}

	var (
		fitness float64
		found   bool
	)
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixLandscape + sequence))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			fitness, err = DecodeFitness(val)
			return err
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", sequence, err)
	}
	return fitness, found, nil
}

func (s *BadgerStore) PutBatch(_ context.Context, variants []model.Variant) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()
	for _, variant := range variants {
		if err := wb.Set([]byte(prefixLandscape+variant.Sequence), EncodeFitness(variant.Fitness)); err != nil {
			return fmt.Errorf("write %s: %w", variant.Sequence, err)
		}
	}
	return wb.Flush()
}

func (s *BadgerStore) ForEach(ctx context.Context, fn func(model.Variant) error) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixLandscape)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			sequence := string(item.Key()[len(prefixLandscape):])
			var fitness float64
			if err := item.Value(func(val []byte) error {
				var derr error
				fitness, derr = DecodeFitness(val)
				return derr
			}); err != nil {
				return fmt.Errorf("decode %s: %w", sequence, err)
			}
			if err := fn(model.Variant{Sequence: sequence, Fitness: fitness}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Count(_ context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixLandscape)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerStore) SaveSweep(_ context.Context, record model.SweepRecord) error {
	if record.RunID == "" {
		return errors.New("sweep run id is required")
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	stampVersion(&record)
	payload, err := EncodeSweep(record)
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixSweep+record.RunID), payload)
	})
}

func (s *BadgerStore) GetSweep(_ context.Context, runID string) (model.SweepRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.SweepRecord{}, false, err
	}

	var payload []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixSweep + runID))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return model.SweepRecord{}, false, nil
		}
		return model.SweepRecord{}, false, err
	}

	record, err := DecodeSweep(payload)
	if err != nil {
		return model.SweepRecord{}, false, fmt.Errorf("decode sweep %s: %w", runID, err)
	}
	return record, true, nil
}

func (s *BadgerStore) ListSweeps(_ context.Context) ([]model.SweepRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var records []model.SweepRecord
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSweep)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			payload, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			record, err := DecodeSweep(payload)
			if err != nil {
				return fmt.Errorf("decode sweep %s: %w", it.Item().Key(), err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSweeps(records)
	return records, nil
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BadgerStore) getDB() (*badger.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}
