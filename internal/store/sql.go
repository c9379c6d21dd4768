package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// Dialect selects the upsert syntax.
type Dialect int

const (
	DialectMySQL Dialect = iota
	DialectPostgres
)

// DialectFor maps a database/sql driver name to its Dialect.
func DialectFor(driverName string) (Dialect, error) {
	switch driverName {
	case "mysql":
		return DialectMySQL, nil
	case "pgx", "postgres":
		return DialectPostgres, nil
	default:
		return 0, fmt.Errorf("store: unsupported driver %q", driverName)
	}
}

// SQL is the sqlx-backed Store.
type SQL struct {
	db      *sqlx.DB
	dialect Dialect
	newID   func() string
	now     func() time.Time
}

// SQLOption tweaks an SQL store.
type SQLOption func(*SQL)

// WithIDFunc replaces UUID generation (tests).
func WithIDFunc(fn func() string) SQLOption { return func(s *SQL) { s.newID = fn } }

// WithSQLClock replaces time.Now (tests).
func WithSQLClock(fn func() time.Time) SQLOption { return func(s *SQL) { s.now = fn } }

// NewSQL wraps db.  The dialect follows db.DriverName().
func NewSQL(db *sqlx.DB, opts ...SQLOption) (*SQL, error) {
	d, err := DialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	s := &SQL{db: db, dialect: d, newID: newUUID, now: time.Now}
	for _, fn := range opts {
		fn(s)
	}
	return s, nil
}

// Insert appends rec to table and returns the generated id.
func (s *SQL) Insert(ctx context.Context, table string, rec Record) (id string, err error) {
	start := time.Now()
	defer func() { observe("insert", table, start, err) }()

	if err := checkIdents(table, rec); err != nil {
		return "", &StoreError{Op: "insert", Table: table, Err: err}
	}

	id = s.newID()
	row := stamp(rec, id, s.now())
	q, args := s.insertSQL(table, row)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return "", &StoreError{Op: "insert", Table: table, Err: classify(err)}
	}
	return id, nil
}

// Upsert inserts rec or updates the row whose conflictKey matches.
func (s *SQL) Upsert(ctx context.Context, table string, rec Record, conflictKey string) (err error) {
	start := time.Now()
	defer func() { observe("upsert", table, start, err) }()

	if err := checkIdents(table, rec, conflictKey); err != nil {
		return &StoreError{Op: "upsert", Table: table, Err: err}
	}
	if _, ok := rec.Get(conflictKey); !ok {
		return &StoreError{Op: "upsert", Table: table, Err: fmt.Errorf("conflict key %q not in record", conflictKey)}
	}

	row := stamp(rec, s.newID(), s.now())
	q, args := s.insertSQL(table, row)
	q += s.conflictClause(rec, conflictKey)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return &StoreError{Op: "upsert", Table: table, Err: classify(err)}
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the pool.
func (s *SQL) Close() error { return s.db.Close() }

// insertSQL builds “INSERT INTO t (cols) VALUES (?, …)” rebound for the
// driver's placeholder style.
func (s *SQL) insertSQL(table string, row Record) (string, []any) {
	cols := make([]string, len(row))
	marks := make([]string, len(row))
	args := make([]any, len(row))
	for i, c := range row {
		cols[i] = c.Name
		marks[i] = "?"
		args[i] = c.Value
	}
	q := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(marks, ", ") + ")"
	return s.db.Rebind(q), args
}

// conflictClause updates every caller column except the key itself.  id and
// created_at are never in rec, so an existing row keeps them.
func (s *SQL) conflictClause(rec Record, conflictKey string) string {
	sets := make([]string, 0, len(rec))
	for _, c := range rec {
		if c.Name == conflictKey {
			continue
		}
		switch s.dialect {
		case DialectPostgres:
			sets = append(sets, c.Name+" = EXCLUDED."+c.Name)
		default:
			sets = append(sets, c.Name+" = VALUES("+c.Name+")")
		}
	}

	switch s.dialect {
	case DialectPostgres:
		if len(sets) == 0 {
			return " ON CONFLICT (" + conflictKey + ") DO NOTHING"
		}
		return " ON CONFLICT (" + conflictKey + ") DO UPDATE SET " + strings.Join(sets, ", ")
	default:
		if len(sets) == 0 {
			sets = append(sets, conflictKey+" = "+conflictKey)
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
}

// classify tags unique violations with ErrConflict while keeping the
// driver error in the chain.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return errors.Join(ErrConflict, err)
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == "23505" {
		return errors.Join(ErrConflict, err)
	}
	return err
}
