package savechange

import (
	"context"
	"log/slog"

	"github.com/mickamy/savechange/internal/group"
)

const (
	hookSaveTheChange  = "save_the_change"
	hookUpdateTogether = "update_together"
)

// saveHook rewrites a pending write. Returning false skips the write.
type saveHook struct {
	name  string
	order int
	fn    func(r *Record, w *Write) bool
}

// SaveOption adjusts a single Save call.
type SaveOption func(*saveOptions)

type saveOptions struct {
	fields      []string
	forceInsert bool
	forceUpdate bool
}

// UpdateFields restricts the save to the named fields. Group expansion still
// applies. An empty list saves nothing.
func UpdateFields(names ...string) SaveOption {
	return func(o *saveOptions) {
		o.fields = append(make([]string, 0, len(names)), names...)
	}
}

// ForceInsert demands an insert and disables minimisation.
func ForceInsert() SaveOption {
	return func(o *saveOptions) { o.forceInsert = true }
}

// ForceUpdate demands an update and disables minimisation.
func ForceUpdate() SaveOption {
	return func(o *saveOptions) { o.forceUpdate = true }
}

// Save persists r through b. Tracking state is reset once b returns without
// error, or when there is nothing to write; a failed write leaves it intact.
func (r *Record) Save(ctx context.Context, b Backend, opts ...SaveOption) error {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.forceInsert && o.forceUpdate {
		return ErrForceConflict
	}

	w := Write{Adding: r.adding, ForceInsert: o.forceInsert, ForceUpdate: o.forceUpdate}
	if o.fields != nil {
		names, err := r.schema.resolve(o.fields)
		if err != nil {
			return err
		}
		w.Fields = names
	}

	proceed := true
	for _, h := range r.schema.hooks {
		if !h.fn(r, &w) {
			proceed = false
			break
		}
	}
	if proceed && w.Partial() && len(w.Fields) == 0 {
		proceed = false
	}

	if !proceed {
		r.schema.logger.DebugContext(ctx, "savechange: nothing to save", slog.String("table", r.schema.table))
	} else {
		if !w.Adding {
			w.Before = r.before(w.Fields)
		}
		if err := b.Write(ctx, r, w); err != nil {
			return err
		}
		r.adding = false
	}
	r.ledger.reset()
	return nil
}

// minimize restricts the write of a persisted record to its changed fields.
func minimize(r *Record, w *Write) bool {
	if w.Adding || w.Partial() || w.ForceInsert || w.ForceUpdate || r.identityChanged() {
		return true
	}
	names, err := r.schema.resolve(r.ledger.dirty(r.live))
	if err != nil {
		// ledger keys are always tracked names
		return true
	}
	w.Fields = names
	return len(names) > 0
}

// expandGroups adds every update-together companion of the fields being written.
func expandGroups(r *Record, w *Write) bool {
	if !w.Partial() {
		return true
	}
	names, err := r.schema.resolve(group.Expand(r.schema.together, w.Fields))
	if err != nil {
		return true
	}
	w.Fields = names
	return true
}

// identityChanged reports whether the primary key was reassigned.
func (r *Record) identityChanged() bool {
	pk := r.schema.PrimaryKey()
	for _, name := range []string{pk.Name, pk.Column} {
		if _, ok := r.ledger.changed[name]; ok {
			return true
		}
	}
	return false
}
