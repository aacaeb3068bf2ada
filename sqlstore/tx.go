package sqlstore

import (
	"context"
	"database/sql"

	"github.com/mickamy/savechange"
	"github.com/mickamy/savechange/internal/buffer"
)

// Tx wraps a *sql.Tx and buffers history entries within the transaction.
// It is a savechange.Backend, so several records can be saved atomically.
type Tx struct {
	*sql.Tx
	s   *Store
	buf *buffer.Buffer[entry]
	ctx context.Context
}

var _ savechange.Backend = (*Tx)(nil)

// Write persists r inside the transaction.
func (t *Tx) Write(ctx context.Context, r *savechange.Record, w savechange.Write) error {
	e, err := t.s.write(ctx, t.Tx, r, w)
	if err != nil {
		return err
	}
	if e.op != "" {
		t.s.metrics.observeWrite(e)
	}
	if t.s.cfg.History && e.op != "" && !skipped(ctx) {
		t.buf.Add(e)
	}
	return nil
}

// Fetch reads the named fields of r inside the transaction.
func (t *Tx) Fetch(ctx context.Context, r *savechange.Record, fields []string) (map[string]any, error) {
	return t.s.fetch(ctx, t.Tx, r.Schema(), r.PrimaryKey(), fields)
}

// Find loads a record inside the transaction.
func (t *Tx) Find(ctx context.Context, schema *savechange.Schema, id any) (*savechange.Record, error) {
	values, err := t.s.fetch(ctx, t.Tx, schema, id, nil)
	if err != nil {
		return nil, err
	}
	return schema.Load(values)
}

// Commit flushes buffered history records into history tables before commit.
func (t *Tx) Commit() error {
	if err := t.s.record(t.ctx, t.Tx, t.buf.Drain()); err != nil {
		_ = t.Tx.Rollback()
		return err
	}
	return t.Tx.Commit()
}

// Rollback clears buffered history entries and rolls back the transaction.
func (t *Tx) Rollback() error {
	t.buf.Reset()
	return t.Tx.Rollback()
}
