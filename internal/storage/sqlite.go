package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"fitwalk/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, sequence string) (float64, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, false, err
	}

	var fitness float64
	err = db.QueryRowContext(ctx, `SELECT fitness FROM landscape WHERE sequence = ?`, sequence).Scan(&fitness)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return fitness, true, nil
}

func (s *SQLiteStore) PutBatch(ctx context.Context, variants []model.Variant) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO landscape (sequence, fitness)
		VALUES (?, ?)
		ON CONFLICT(sequence) DO UPDATE SET
			fitness = excluded.fitness
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, variant := range variants {
		if _, err := stmt.ExecContext(ctx, variant.Sequence, variant.Fitness); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write %s: %w", variant.Sequence, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ForEach(ctx context.Context, fn func(model.Variant) error) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `SELECT sequence, fitness FROM landscape ORDER BY sequence`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var variant model.Variant
		if err := rows.Scan(&variant.Sequence, &variant.Fitness); err != nil {
			return err
		}
		if err := fn(variant); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM landscape`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteStore) SaveSweep(ctx context.Context, record model.SweepRecord) error {
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

	_, err = db.ExecContext(ctx, `
		INSERT INTO sweeps (run_id, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, record.RunID, record.SchemaVersion, record.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetSweep(ctx context.Context, runID string) (model.SweepRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.SweepRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM sweeps WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteStore) ListSweeps(ctx context.Context) ([]model.SweepRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT run_id, payload FROM sweeps`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.SweepRecord
	for rows.Next() {
		var (
			runID   string
			payload []byte
		)
		if err := rows.Scan(&runID, &payload); err != nil {
			return nil, err
		}
		record, err := DecodeSweep(payload)
		if err != nil {
			return nil, fmt.Errorf("decode sweep %s: %w", runID, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortSweeps(records)
	return records, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS landscape (
			sequence TEXT PRIMARY KEY,
			fitness REAL NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sweeps (
			run_id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
