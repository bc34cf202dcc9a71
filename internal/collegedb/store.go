// Package collegedb provides read access to the flattened college view over
// a bounded connection pool.
package collegedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"collegecontent/internal/config"
	"collegecontent/internal/core"
	"collegecontent/internal/logger"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // SQLite driver for local stores and fixtures
)

// DefaultView is the denormalized view every fetch reads from.
const DefaultView = "mvx_college_data_flattened"

// Pool bounds.
const (
	MinPoolSize = 1
	MaxPoolSize = 10
)

// Dialect captures the placeholder and array differences between drivers.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d == DialectSQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

func (d Dialect) String() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// Row is one result row: values in column order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of col and whether the column exists.
func (r Row) Get(col string) (any, bool) {
	for i, c := range r.Columns {
		if c == col {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as a column→value map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// Querier runs parameterized read queries. *Store implements it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Dialect() Dialect
	View() string
}

// Options configures a Store.
type Options struct {
	Driver          string // "postgres" or "sqlite3"
	DSN             string
	View            string
	MinConns        int
	MaxConns        int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// Store is the pooled data store adapter.
type Store struct {
	db      *sql.DB
	dialect Dialect
	view    string
}

// Open connects to the store and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dialect := DialectPostgres
	switch opts.Driver {
	case "", "postgres":
		opts.Driver = "postgres"
	case "sqlite3":
		dialect = DialectSQLite
	default:
		return nil, core.Errorf(core.KindInvalidArgument, "collegedb.Open", "unsupported driver %q", opts.Driver)
	}
	if opts.View == "" {
		opts.View = DefaultView
	}
	if !validIdentifier(opts.View) {
		return nil, core.Errorf(core.KindInvalidArgument, "collegedb.Open", "invalid view name %q", opts.View)
	}
	if opts.MinConns < MinPoolSize {
		opts.MinConns = MinPoolSize
	}
	if opts.MaxConns <= 0 || opts.MaxConns > MaxPoolSize {
		opts.MaxConns = MaxPoolSize
	}
	if opts.MinConns > opts.MaxConns {
		opts.MinConns = opts.MaxConns
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, core.Wrap(core.KindDataUnavailable, "collegedb.Open", fmt.Errorf("failed to open database: %w", err))
	}

	db.SetMaxOpenConns(opts.MaxConns)
	db.SetMaxIdleConns(opts.MinConns)
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, core.Wrap(core.KindDataUnavailable, "collegedb.Open", fmt.Errorf("failed to ping database: %w", err))
	}

	logger.Info("College data store connected",
		"driver", opts.Driver,
		"view", opts.View,
		"min_conns", opts.MinConns,
		"max_conns", opts.MaxConns,
	)

	return &Store{db: db, dialect: dialect, view: opts.View}, nil
}

// OpenFromConfig opens the store described by the database config section.
func OpenFromConfig(ctx context.Context, cfg config.Database) (*Store, error) {
	return Open(ctx, Options{
		Driver:          cfg.Driver,
		DSN:             cfg.ConnectionString(),
		View:            cfg.View,
		MinConns:        cfg.MinConns,
		MaxConns:        cfg.MaxConns,
		ConnMaxLifetime: config.ParseDuration(cfg.ConnMaxLifetime, 30*time.Minute),
		ConnectTimeout:  config.ParseDuration(cfg.Timeout, 10*time.Second),
	})
}

func (s *Store) Dialect() Dialect { return s.dialect }
func (s *Store) View() string     { return s.view }

// DB exposes the pool for fixture setup in tests.
func (s *Store) DB() *sql.DB { return s.db }

// Stats reports pool usage.
func (s *Store) Stats() sql.DBStats { return s.db.Stats() }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return core.Wrap(core.KindDataUnavailable, "collegedb.Ping", err)
	}
	return nil
}

// Query runs one read query on a connection taken from the pool. The
// connection goes back to the pool on every return path.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, core.Wrap(core.KindDataUnavailable, "collegedb.Query", fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classifyQueryError(err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, core.Wrap(core.KindSchemaMismatch, "collegedb.Query", fmt.Errorf("failed to scan row: %w", err))
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, Row{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryError(err)
	}
	return out, nil
}

// TestConnection runs SELECT 1 on a pooled connection.
func (s *Store) TestConnection(ctx context.Context) bool {
	rows, err := s.Query(ctx, "SELECT 1")
	if err != nil {
		logger.Error("Data store connection test failed", err)
		return false
	}
	return len(rows) == 1
}

func classifyQueryError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "42703" || pqErr.Code == "42P01":
			return core.Wrap(core.KindSchemaMismatch, "collegedb.Query", err)
		case pqErr.Code.Class() == "08" || pqErr.Code.Class() == "57":
			return core.Wrap(core.KindDataUnavailable, "collegedb.Query", err)
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "no such column") || strings.Contains(msg, "no such table") {
		return core.Wrap(core.KindSchemaMismatch, "collegedb.Query", err)
	}

	// Anything else (bad connections, network errors, syntax) means the
	// store could not answer.
	return core.Wrap(core.KindDataUnavailable, "collegedb.Query", err)
}

func validIdentifier(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for i, r := range p {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}
