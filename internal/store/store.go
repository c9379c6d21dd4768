// internal/store/store.go
//
// Persistence adapter boundary.
//
// Context
// -------
// Handlers hand normalized rows to a Store and learn only two things back:
// the new row id, or a *StoreError.  The adapter does not interpret
// business rules and performs no retries; transient failures surface to
// the caller as-is, wrapped.
//
// Two operations exist:
//
//   • Insert appends a row and returns its generated id.
//   • Upsert inserts or updates the row matching conflictKey.  It backs
//     idempotent webhook delivery (bookings keyed by external_event_id).
//
// The adapter assigns `id` (UUID) and `created_at` at persistence time.
// An upsert that hits an existing row keeps both untouched.
//
// Implementations
// ---------------
//   • SQL    – sqlx over MySQL or Postgres (sql.go).
//   • Memory – in-process tables with the same semantics (memory.go).
package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/adept-intake/internal/metrics"
)

// Column names the adapter owns.
const (
	ColID        = "id"
	ColCreatedAt = "created_at"
)

// Column is one named value in a Record.
type Column struct {
	Name  string
	Value any
}

// Record is an ordered row.  Order fixes the generated column list so
// statements are stable.
type Record []Column

// Get returns the value for name.
func (r Record) Get(name string) (any, bool) {
	for _, c := range r {
		if c.Name == name {
			return c.Value, true
		}
	}
	return nil, false
}

// Store is the persistence boundary used by the intake handlers.
type Store interface {
	Insert(ctx context.Context, table string, rec Record) (string, error)
	Upsert(ctx context.Context, table string, rec Record, conflictKey string) error
	Ping(ctx context.Context) error
	Close() error
}

// ErrInvalidIdentifier guards generated SQL against unexpected names.
var ErrInvalidIdentifier = errors.New("store: invalid identifier")

// ErrConflict is reported when an insert violates a unique column.
var ErrConflict = errors.New("store: unique constraint violated")

// StoreError wraps every adapter failure with the operation and table.
type StoreError struct {
	Op    string // insert | upsert
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err came from a Store.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// -----------------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------------

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdents(table string, rec Record, extra ...string) error {
	names := append([]string{table}, extra...)
	for _, c := range rec {
		names = append(names, c.Name)
	}
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, n)
		}
	}
	for _, c := range rec {
		if c.Name == ColID || c.Name == ColCreatedAt {
			return fmt.Errorf("%w: %q is assigned by the store", ErrInvalidIdentifier, c.Name)
		}
	}
	return nil
}

// stamp prepends the adapter-owned columns.
func stamp(rec Record, id string, now time.Time) Record {
	out := make(Record, 0, len(rec)+2)
	out = append(out, Column{ColID, id}, Column{ColCreatedAt, now.UTC()})
	return append(out, rec...)
}

// plain unwraps driver.Valuer values (sql.NullString and friends) so rows
// can be compared.
func plain(v any) any {
	if dv, ok := v.(driver.Valuer); ok {
		x, err := dv.Value()
		if err != nil {
			return v
		}
		return x
	}
	return v
}

func newUUID() string { return uuid.NewString() }

// observe records latency and failures for one adapter call.
func observe(op, table string, start time.Time, err error) {
	metrics.StoreDuration.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues(op, table).Inc()
	}
}
