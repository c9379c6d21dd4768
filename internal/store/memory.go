package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory keeps tables in process.  It honours the same id, created_at, and
// upsert semantics as SQL, and enforces the unique columns it is told
// about.  Used by tests and by `database.driver: memory`.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Record
	unique map[string][]string
	newID  func() string
	now    func() time.Time
}

// MemoryOption tweaks a Memory store.
type MemoryOption func(*Memory)

// WithUnique declares column as unique within table.
func WithUnique(table, column string) MemoryOption {
	return func(m *Memory) { m.unique[table] = append(m.unique[table], column) }
}

// WithMemoryClock replaces time.Now (tests).
func WithMemoryClock(fn func() time.Time) MemoryOption { return func(m *Memory) { m.now = fn } }

// NewMemory returns an empty store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		tables: make(map[string][]Record),
		unique: make(map[string][]string),
		newID:  newUUID,
		now:    time.Now,
	}
	for _, fn := range opts {
		fn(m)
	}
	return m
}

// Insert appends rec and returns its id.
func (m *Memory) Insert(_ context.Context, table string, rec Record) (id string, err error) {
	start := time.Now()
	defer func() { observe("insert", table, start, err) }()

	if err := checkIdents(table, rec); err != nil {
		return "", &StoreError{Op: "insert", Table: table, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, col := range m.unique[table] {
		if v, ok := rec.Get(col); ok && m.find(table, col, v) >= 0 {
			return "", &StoreError{Op: "insert", Table: table, Err: fmt.Errorf("%w: %s", ErrConflict, col)}
		}
	}

	id = m.newID()
	m.tables[table] = append(m.tables[table], stamp(clone(rec), id, m.now()))
	return id, nil
}

// Upsert inserts rec or replaces the caller columns of the row whose
// conflictKey matches.  A null key never matches, as in SQL.
func (m *Memory) Upsert(_ context.Context, table string, rec Record, conflictKey string) (err error) {
	start := time.Now()
	defer func() { observe("upsert", table, start, err) }()

	if err := checkIdents(table, rec, conflictKey); err != nil {
		return &StoreError{Op: "upsert", Table: table, Err: err}
	}
	key, ok := rec.Get(conflictKey)
	if !ok {
		return &StoreError{Op: "upsert", Table: table, Err: fmt.Errorf("conflict key %q not in record", conflictKey)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.find(table, conflictKey, key); i >= 0 {
		old := m.tables[table][i]
		m.tables[table][i] = append(old[:2:2], clone(rec)...)
		return nil
	}
	m.tables[table] = append(m.tables[table], stamp(clone(rec), m.newID(), m.now()))
	return nil
}

// Rows returns a copy of table in insertion order.
func (m *Memory) Rows(table string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.tables[table]))
	for i, r := range m.tables[table] {
		out[i] = clone(r)
	}
	return out
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

// find returns the index of the first row whose col equals v, or -1.
// Caller holds m.mu.
func (m *Memory) find(table, col string, v any) int {
	want := plain(v)
	if want == nil {
		return -1
	}
	for i, r := range m.tables[table] {
		if got, ok := r.Get(col); ok && plain(got) == want {
			return i
		}
	}
	return -1
}

func clone(r Record) Record { return append(Record(nil), r...) }
