package loader

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

// snapshot is one completed load.
type snapshot struct {
	table  *table.Table
	report *Report
}

// Memo caches the result of loading a fixed set of partitions. The table is
// immutable, so concurrent readers share it freely; Reload swaps in a new
// one without disturbing readers of the old one.
type Memo struct {
	loader *Loader
	ids    []string

	// mu serializes loads. Readers never take it.
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewMemo creates a Memo for ids. Nothing is loaded until Get or Reload.
func NewMemo(l *Loader, ids []string) *Memo {
	return &Memo{loader: l, ids: append([]string(nil), ids...)}
}

// Get returns the cached table, loading it on first use. Concurrent first
// callers wait for a single load.
func (m *Memo) Get(ctx context.Context) (*table.Table, *Report) {
	if s := m.current.Load(); s != nil {
		return s.table, s.report
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.current.Load(); s != nil {
		return s.table, s.report
	}
	return m.loadLocked(ctx)
}

// Reload discards the cached table and loads again.
func (m *Memo) Reload(ctx context.Context) (*table.Table, *Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx)
}

// Loaded reports whether a load has completed.
func (m *Memo) Loaded() bool {
	return m.current.Load() != nil
}

// IDs returns the partition ids this memo loads.
func (m *Memo) IDs() []string {
	return append([]string(nil), m.ids...)
}

func (m *Memo) loadLocked(ctx context.Context) (*table.Table, *Report) {
	t, report := m.loader.Load(ctx, m.ids)
	m.current.Store(&snapshot{table: t, report: report})
	return t, report
}
