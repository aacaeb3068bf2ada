// Package memstore is an in-memory savechange.Backend intended for tests and
// examples. It keeps rows per table keyed by primary key and remembers every
// write request it receives.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mickamy/savechange"
)

var (
	// ErrNotFound is returned when no row exists for a primary key.
	ErrNotFound = errors.New("memstore: record not found")
	// ErrNoRowsUpdated is returned when an update targets a missing row.
	ErrNoRowsUpdated = errors.New("memstore: update did not affect any rows")
	// ErrDuplicateKey is returned when an insert collides with an existing row.
	ErrDuplicateKey = errors.New("memstore: duplicate primary key")
)

// Store holds rows in memory.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[any]map[string]any
	writes map[string][]savechange.Write
	fail   error
}

var _ savechange.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		tables: map[string]map[any]map[string]any{},
		writes: map[string][]savechange.Write{},
	}
}

// FailWith makes every following Write return err until called with nil.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// Put stores a row directly, bypassing write tracking.
func (s *Store) Put(table string, id any, row map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table(table)[id] = cloneRow(row)
}

// Row returns a copy of a stored row.
func (s *Store) Row(table string, id any) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.tables[table][id]
	if !ok {
		return nil, false
	}
	return cloneRow(row), true
}

// Writes returns every write request received for table.
func (s *Store) Writes(table string) []savechange.Write {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.writes[table])
}

func (s *Store) Write(_ context.Context, r *savechange.Record, w savechange.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}

	schema := r.Schema()
	rows := s.table(schema.Table())
	id := r.PrimaryKey()
	s.writes[schema.Table()] = append(s.writes[schema.Table()], w)

	if w.Adding || w.ForceInsert {
		if _, ok := rows[id]; ok {
			return fmt.Errorf("%w: %s %v", ErrDuplicateKey, schema.Table(), id)
		}
		rows[id] = cloneRow(r.Columns())
		return nil
	}

	row, ok := rows[id]
	if !ok {
		if w.Partial() || w.ForceUpdate {
			return fmt.Errorf("%w: %s %v", ErrNoRowsUpdated, schema.Table(), id)
		}
		rows[id] = cloneRow(r.Columns())
		return nil
	}
	if !w.Partial() {
		rows[id] = cloneRow(r.Columns())
		return nil
	}
	for _, name := range w.Fields {
		f, _ := schema.Field(name)
		if v, ok := r.Raw(f.Column); ok {
			row[f.Column] = cloneValue(v)
		}
	}
	return nil
}

func (s *Store) Fetch(_ context.Context, r *savechange.Record, fields []string) (map[string]any, error) {
	return s.fetch(r.Schema(), r.PrimaryKey(), fields)
}

// Find loads the record of schema with primary key id.
func (s *Store) Find(schema *savechange.Schema, id any) (*savechange.Record, error) {
	row, err := s.fetch(schema, id, nil)
	if err != nil {
		return nil, err
	}
	return schema.Load(row)
}

func (s *Store) fetch(schema *savechange.Schema, id any, fields []string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.tables[schema.Table()][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, schema.Table(), id)
	}
	if len(fields) == 0 {
		return cloneRow(row), nil
	}
	out := make(map[string]any, len(fields))
	for _, name := range fields {
		f, ok := schema.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", savechange.ErrUnknownField, schema.Table(), name)
		}
		if v, ok := row[f.Column]; ok {
			out[f.Column] = cloneValue(v)
		}
	}
	return out, nil
}

func (s *Store) table(name string) map[any]map[string]any {
	rows, ok := s.tables[name]
	if !ok {
		rows = map[any]map[string]any{}
		s.tables[name] = rows
	}
	return rows
}

