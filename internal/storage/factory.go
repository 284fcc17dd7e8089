package storage

import "fmt"

const (
	KindMemory = "memory"
	KindBadger = "badger"
	KindSQLite = "sqlite"
)

func DefaultStoreKind() string {
	return KindBadger
}

// NewStore builds an uninitialized backend. path is a directory for badger
// and a database file for sqlite; it is ignored by the memory backend.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindBadger:
		return NewBadgerStore(path), nil
	case KindSQLite:
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
