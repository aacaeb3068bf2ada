// Package sqlstore persists savechange records through database/sql.
//
// Partial writes become UPDATE statements over exactly the requested columns.
// Every write can additionally be captured into a history table
// (<table><suffix>) inside the same transaction, together with the operator,
// trace id and reason attached to the context.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mickamy/savechange"
	"github.com/mickamy/savechange/internal/buffer"
	"github.com/mickamy/savechange/internal/ident"
	"github.com/mickamy/savechange/internal/query"
)

var (
	// ErrNoRowsUpdated is returned when a partial or forced update matched no row.
	ErrNoRowsUpdated = errors.New("sqlstore: update did not affect any rows")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("sqlstore: record not found")
)

// Dialect selects placeholder syntax and history DDL.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) placeholder() query.Placeholder {
	if d == SQLite {
		return query.Question
	}
	return query.Dollar
}

// RedactFunc defines a function used to sanitize or mask values before they are recorded.
type RedactFunc func(key string, v any) any

// RedactMap maps column names to specific redaction functions.
type RedactMap map[string]RedactFunc

// Config defines the options of a Store.
type Config struct {
	Dialect       Dialect
	History       bool                  // record every write into a history table
	HistorySuffix string                // e.g. "_history" (default)
	Redact        RedactMap             // optional column-based redaction of history values
	Logger        *slog.Logger          // statements are logged at debug level
	Now           func() time.Time      // clock for history timestamps
	Registerer    prometheus.Registerer // optional; stores sharing one registerer share its collectors
}

// HistoryTableName returns the history table of base.
func (c Config) HistoryTableName(base string) string {
	return ident.QuoteQualified(ident.HistoryParts(base, c.HistorySuffix))
}

// Store is a savechange.Backend over a *sql.DB.
type Store struct {
	db      *sql.DB
	cfg     Config
	metrics *metrics
}

var _ savechange.Backend = (*Store)(nil)

// New creates a Store with sensible defaults.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.HistorySuffix == "" {
		cfg.HistorySuffix = "_history"
	}
	if cfg.Redact == nil {
		cfg.Redact = RedactMap{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{db: db, cfg: cfg, metrics: newMetrics(cfg.Registerer)}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Write persists r in its own transaction, history included.
func (s *Store) Write(ctx context.Context, r *savechange.Record, w savechange.Write) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := tx.Write(ctx, r, w); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Fetch reads the named fields of r by primary key.
func (s *Store) Fetch(ctx context.Context, r *savechange.Record, fields []string) (map[string]any, error) {
	return s.fetch(ctx, s.db, r.Schema(), r.PrimaryKey(), fields)
}

// Find loads the record of schema with primary key id.
func (s *Store) Find(ctx context.Context, schema *savechange.Schema, id any) (*savechange.Record, error) {
	values, err := s.fetch(ctx, s.db, schema, id, nil)
	if err != nil {
		return nil, err
	}
	return schema.Load(values)
}

// BeginTx starts a transaction that buffers history entries until Commit.
func (s *Store) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	t, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin: %w", err)
	}
	return &Tx{Tx: t, s: s, buf: buffer.NewBuffer[entry](), ctx: ctx}, nil
}

// EnsureHistory creates the history table of schema if it does not exist.
func (s *Store) EnsureHistory(ctx context.Context, schema *savechange.Schema) error {
	historyIdent := s.cfg.HistoryTableName(schema.Table())
	if historyIdent == "" {
		return fmt.Errorf("sqlstore: invalid history identifier for %s", schema.Table())
	}
	var ddl string
	switch s.cfg.Dialect {
	case SQLite:
		ddl = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	history_id INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT,
	operation TEXT NOT NULL,
	operated_at TIMESTAMP NOT NULL,
	operated_by TEXT,
	trace_id TEXT,
	reason TEXT,
	"before" TEXT,
	"after" TEXT
)`, historyIdent)
	default:
		ddl = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	history_id BIGSERIAL PRIMARY KEY,
	id TEXT,
	operation TEXT NOT NULL,
	operated_at TIMESTAMPTZ NOT NULL,
	operated_by TEXT,
	trace_id TEXT,
	reason TEXT,
	"before" JSONB,
	"after" JSONB
)`, historyIdent)
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlstore: create history table: %w", err)
	}
	return nil
}

// applyRedact returns a redacted copy of the given map using cfg.Redact.
func (s *Store) applyRedact(m map[string]any) map[string]any {
	if m == nil || len(s.cfg.Redact) == 0 {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if fn, ok := s.cfg.Redact[k]; ok && fn != nil {
			out[k] = fn(k, v)
		} else {
			out[k] = v
		}
	}
	return out
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) exec(ctx context.Context, q execer, stmt string, args ...any) (sql.Result, error) {
	s.cfg.Logger.DebugContext(ctx, "sqlstore: exec", slog.String("sql", stmt), slog.Int("args", len(args)))
	return q.ExecContext(ctx, stmt, args...)
}

func (s *Store) fetch(ctx context.Context, q execer, schema *savechange.Schema, id any, fields []string) (map[string]any, error) {
	cols := make([]string, 0, len(schema.Fields()))
	if len(fields) == 0 {
		for _, f := range schema.Fields() {
			cols = append(cols, f.Column)
		}
	} else {
		for _, name := range fields {
			f, ok := schema.Field(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", savechange.ErrUnknownField, schema.Table(), name)
			}
			cols = append(cols, f.Column)
		}
	}

	stmt := query.Select(schema.Table(), cols, schema.PrimaryKey().Column, s.cfg.Dialect.placeholder())
	s.cfg.Logger.DebugContext(ctx, "sqlstore: query", slog.String("sql", stmt))
	rows, err := q.QueryContext(ctx, stmt, id)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: select %s: %w", schema.Table(), err)
	}
	row, err := scanOne(rows)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, schema.Table(), id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: scan %s: %w", schema.Table(), err)
	}
	return decodeRow(schema, row)
}

// write issues the statements for w and returns the history entry to record.
func (s *Store) write(ctx context.Context, q execer, r *savechange.Record, w savechange.Write) (entry, error) {
	schema := r.Schema()
	pk := schema.PrimaryKey()
	e := entry{table: schema.Table(), id: r.PrimaryKey(), at: s.cfg.Now(), meta: MetaFrom(ctx)}

	if w.Adding || w.ForceInsert {
		return s.insert(ctx, q, r, e)
	}

	var fields []savechange.Field
	if w.Partial() {
		for _, name := range w.Fields {
			f, ok := schema.Field(name)
			if !ok {
				return entry{}, fmt.Errorf("%w: %s.%s", savechange.ErrUnknownField, schema.Table(), name)
			}
			fields = append(fields, f)
		}
	} else {
		fields = schema.Fields()
	}

	cols := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	after := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.Primary {
			continue
		}
		v, _ := r.Raw(f.Column)
		enc, err := encodeValue(f, v)
		if err != nil {
			return entry{}, fmt.Errorf("sqlstore: encode %s.%s: %w", schema.Table(), f.Column, err)
		}
		cols = append(cols, f.Column)
		args = append(args, enc)
		after[f.Column] = v
	}
	if len(cols) == 0 {
		return entry{}, nil
	}

	stmt := query.Update(schema.Table(), cols, pk.Column, s.cfg.Dialect.placeholder())
	res, err := s.exec(ctx, q, stmt, append(args, r.PrimaryKey())...)
	if err != nil {
		return entry{}, fmt.Errorf("sqlstore: update %s: %w", schema.Table(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return entry{}, fmt.Errorf("sqlstore: update %s: %w", schema.Table(), err)
	}
	if n == 0 {
		if w.Partial() || w.ForceUpdate {
			return entry{}, fmt.Errorf("%w: %s %v", ErrNoRowsUpdated, schema.Table(), r.PrimaryKey())
		}
		return s.insert(ctx, q, r, e)
	}

	e.op = "UPDATE"
	e.before = w.Before
	e.after = after
	return e, nil
}

func (s *Store) insert(ctx context.Context, q execer, r *savechange.Record, e entry) (entry, error) {
	schema := r.Schema()
	cols := make([]string, 0, len(schema.Fields()))
	args := make([]any, 0, len(schema.Fields()))
	after := make(map[string]any, len(schema.Fields()))
	for _, f := range schema.Fields() {
		v, ok := r.Raw(f.Column)
		if !ok {
			continue
		}
		enc, err := encodeValue(f, v)
		if err != nil {
			return entry{}, fmt.Errorf("sqlstore: encode %s.%s: %w", schema.Table(), f.Column, err)
		}
		cols = append(cols, f.Column)
		args = append(args, enc)
		after[f.Column] = v
	}
	stmt := query.Insert(schema.Table(), cols, s.cfg.Dialect.placeholder())
	if _, err := s.exec(ctx, q, stmt, args...); err != nil {
		return entry{}, fmt.Errorf("sqlstore: insert %s: %w", schema.Table(), err)
	}
	e.op = "INSERT"
	e.after = after
	return e, nil
}

var historyColumns = []string{"id", "operation", "operated_at", "operated_by", "trace_id", "reason", "before", "after"}

// record writes history entries into their history tables using q.
func (s *Store) record(ctx context.Context, q execer, entries []entry) error {
	for _, e := range entries {
		beforeJSON, err := marshalColumns(s.applyRedact(e.before))
		if err != nil {
			return fmt.Errorf("sqlstore: failed to marshal before: %w", err)
		}
		afterJSON, err := marshalColumns(s.applyRedact(e.after))
		if err != nil {
			return fmt.Errorf("sqlstore: failed to marshal after: %w", err)
		}
		historyParts := ident.HistoryParts(e.table, s.cfg.HistorySuffix)
		if len(historyParts) == 0 {
			return fmt.Errorf("sqlstore: invalid history table identifier for %q", e.table)
		}
		var id any
		if e.id != nil {
			id = fmt.Sprint(e.id)
		}
		stmt := query.Insert(ident.QuoteQualified(historyParts), historyColumns, s.cfg.Dialect.placeholder())
		if _, err := s.exec(ctx, q, stmt,
			id,
			e.op,
			e.at,
			e.meta.Operator,
			e.meta.TraceID,
			e.meta.Reason,
			beforeJSON,
			afterJSON,
		); err != nil {
			return fmt.Errorf("sqlstore: failed to insert history table: %w", err)
		}
		s.metrics.history.WithLabelValues(e.table).Inc()
	}
	return nil
}

func marshalColumns(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
