// Package savechange tracks field-level changes on records and restricts saves
// to the fields that actually changed.
//
// A Schema is registered once per record type. Every field name (and, for
// relations, its identifier column) is intercepted: reads lazily snapshot
// values that can change in place, writes remember the value they replace.
// On Save the changed fields, expanded through any update-together groups,
// become the field list of a partial write; if nothing changed the write is
// skipped entirely.
package savechange

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"

	"github.com/mickamy/savechange/internal/group"
	"github.com/mickamy/savechange/internal/mutable"
)

// Option configures a Schema at registration.
type Option func(*config)

type config struct {
	table         string
	saveTheChange bool
	trackChanges  bool
	groups        [][]string
	immutable     []reflect.Type
	logger        *slog.Logger
}

// SaveTheChange restricts saves of persisted records to changed fields.
func SaveTheChange() Option {
	return func(c *config) { c.saveTheChange = true }
}

// TrackChanges enables Record.Changes.
func TrackChanges() Option {
	return func(c *config) { c.trackChanges = true }
}

// UpdateTogether declares groups of fields that are always written together.
// It may be given more than once; overlapping groups are merged.
func UpdateTogether(groups ...[]string) Option {
	return func(c *config) {
		for _, g := range groups {
			c.groups = append(c.groups, slices.Clone(g))
		}
	}
}

// WithTable sets the table name instead of deriving it from the model.
func WithTable(name string) Option {
	return func(c *config) { c.table = name }
}

// WithImmutableTypes marks additional types as never changing in place.
func WithImmutableTypes(types ...reflect.Type) Option {
	return func(c *config) { c.immutable = append(c.immutable, types...) }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Schema is the immutable tracking configuration of one record type.
type Schema struct {
	table        string
	fields       []Field
	index        map[string]int // field name and column -> position in fields
	trackers     map[string]*tracker
	primary      int
	together     map[string][]string
	hooks        []saveHook
	trackChanges bool
	classifier   *mutable.Classifier
	logger       *slog.Logger
}

// Register builds the Schema for model. model is a table name, a TableNamer,
// or a struct (or pointer to one) whose pluralised snake_case name is used.
// Exactly one field must be primary; if none is marked, a field named "id" is.
func Register(model any, fields []Field, opts ...Option) (*Schema, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	table := cfg.table
	if table == "" {
		name, err := resolveTableName(model)
		if err != nil {
			return nil, err
		}
		table = name
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("savechange: %s has no fields", table)
	}

	s := &Schema{
		table:        table,
		fields:       make([]Field, 0, len(fields)),
		index:        make(map[string]int, len(fields)*2),
		trackers:     make(map[string]*tracker, len(fields)*2),
		primary:      -1,
		trackChanges: cfg.trackChanges,
		classifier:   mutable.New(cfg.immutable...),
		logger:       cfg.logger,
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("savechange: %s has a field without a name", table)
		}
		if f.Column == "" {
			f.Column = f.Name
		}
		for _, n := range []string{f.Name, f.Column} {
			if _, dup := s.index[n]; dup {
				return nil, fmt.Errorf("savechange: %s: duplicate field name %q", table, n)
			}
		}
		if f.Primary {
			if s.primary >= 0 {
				return nil, fmt.Errorf("savechange: %s: more than one primary field", table)
			}
			s.primary = len(s.fields)
		}
		s.index[f.Name] = len(s.fields)
		s.index[f.Column] = len(s.fields)
		for _, t := range newTrackers(f) {
			s.trackers[t.name] = t
		}
		s.fields = append(s.fields, f)
	}
	if s.primary < 0 {
		i, ok := s.index["id"]
		if !ok {
			return nil, fmt.Errorf("savechange: %s has no primary field", table)
		}
		s.primary = i
		s.fields[i].Primary = true
	}

	groups := make([][]string, 0, len(cfg.groups))
	for _, g := range cfg.groups {
		names, err := s.resolve(g)
		if err != nil {
			return nil, fmt.Errorf("savechange: update together: %w", err)
		}
		groups = append(groups, names)
	}
	s.together = group.Components(groups)

	if cfg.saveTheChange {
		s.hooks = append(s.hooks, saveHook{name: hookSaveTheChange, order: 0, fn: minimize})
	}
	if len(s.together) > 0 {
		s.hooks = append(s.hooks, saveHook{name: hookUpdateTogether, order: 1, fn: expandGroups})
	}
	slices.SortStableFunc(s.hooks, func(a, b saveHook) int { return a.order - b.order })
	return s, nil
}

// MustRegister is like Register but panics on error.
func MustRegister(model any, fields []Field, opts ...Option) *Schema {
	s, err := Register(model, fields, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Table() string {
	return s.table
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	return slices.Clone(s.fields)
}

// Field looks up a field by name or column.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

func (s *Schema) PrimaryKey() Field {
	return s.fields[s.primary]
}

// Together returns the fields that are written whenever name is, including
// name itself, or nil if name is not grouped.
func (s *Schema) Together(name string) []string {
	f, ok := s.Field(name)
	if !ok {
		return nil
	}
	return slices.Clone(s.together[f.Name])
}

// Hooks returns the names of the save hooks in execution order.
func (s *Schema) Hooks() []string {
	out := make([]string, len(s.hooks))
	for i, h := range s.hooks {
		out[i] = h.name
	}
	return out
}

// resolve maps names or columns to field names in declaration order without
// duplicates. The result is never nil.
func (s *Schema) resolve(names []string) ([]string, error) {
	seen := make(map[int]struct{}, len(names))
	for _, n := range names {
		i, ok := s.index[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, s.table, n)
		}
		seen[i] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for i, f := range s.fields {
		if _, ok := seen[i]; ok {
			out = append(out, f.Name)
		}
	}
	return out, nil
}
