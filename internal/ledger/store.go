package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courier/internal/config"
)

var (
	// ErrRead reports that the persisted ledger could not be read. Load
	// returns an empty set alongside it.
	ErrRead = errors.New("ledger read failed")
	// ErrWrite reports that the ledger could not be persisted.
	ErrWrite = errors.New("ledger write failed")
)

// Store persists the delivered-file set.
type Store interface {
	// Load returns the persisted set. On failure it returns an empty set and
	// an error wrapping ErrRead.
	Load(ctx context.Context) (Set, error)
	// Save persists set. Entries already stored are never removed by Save.
	Save(ctx context.Context, set Set) error
	// Forget removes names and reports how many were present. Only operators
	// call it; the dispatch cycle never shrinks the ledger.
	Forget(ctx context.Context, names ...string) (int, error)
	// Location describes where the ledger lives.
	Location() string
	Close() error
}

// Entry is one delivered filename with its recording time when known.
type Entry struct {
	Name       string
	RecordedAt time.Time
}

// EntryLister is implemented by stores that keep recording times.
type EntryLister interface {
	Entries(ctx context.Context) ([]Entry, error)
}

// Open returns the store selected by cfg.Ledger.Backend.
func Open(cfg *config.Config) (Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	switch cfg.Ledger.Backend {
	case config.LedgerBackendJSON, "":
		return NewFileStore(cfg.Ledger.Path), nil
	case config.LedgerBackendSQLite:
		store, err := OpenSQLite(context.Background(), cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}
