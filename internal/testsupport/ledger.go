package testsupport

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"courier/internal/config"
	"courier/internal/ledger"
)

// MustOpenLedger opens the store selected by cfg and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MemoryLedger is an in-memory ledger.Store with injectable failures.
type MemoryLedger struct {
	mu      sync.Mutex
	set     ledger.Set
	LoadErr error
	SaveErr error
	Saves   int
}

// NewMemoryLedger returns a ledger already holding names.
func NewMemoryLedger(names ...string) *MemoryLedger {
	return &MemoryLedger{set: ledger.NewSet(names...)}
}

func (m *MemoryLedger) Load(context.Context) (ledger.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return ledger.NewSet(), fmt.Errorf("%w: %w", ledger.ErrRead, m.LoadErr)
	}
	return m.set.Clone(), nil
}

func (m *MemoryLedger) Save(ctx context.Context, set ledger.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrWrite, err)
	}
	if m.SaveErr != nil {
		return fmt.Errorf("%w: %w", ledger.ErrWrite, m.SaveErr)
	}
	m.set = ledger.Merge(m.set, set)
	return nil
}

func (m *MemoryLedger) Forget(_ context.Context, names ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, name := range names {
		if m.set.Has(name) {
			delete(m.set, name)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryLedger) Location() string { return "memory" }

func (m *MemoryLedger) Close() error { return nil }

// Names returns the stored names in sorted order.
func (m *MemoryLedger) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.Sorted()
}

// SaveCount reports how many times Save was called.
func (m *MemoryLedger) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Saves
}
