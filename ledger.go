package savechange

import (
	"slices"

	"github.com/mickamy/savechange/internal/mutable"
)

// fieldStatus is the mutability state of one intercepted name within a
// tracking lifecycle.
type fieldStatus uint8

const (
	// unchecked: never read since the last reset.
	unchecked fieldStatus = iota
	// baseline: read and classified immutable; only assignments can change it.
	baseline
	// snapshotted: read and classified mutable; a deep copy is the baseline.
	snapshotted
)

type fieldState struct {
	status   fieldStatus
	snapshot any
}

// ledger holds the per-record tracking state.
type ledger struct {
	changed    map[string]any // name -> value before the first assignment
	fields     map[string]fieldState
	classifier *mutable.Classifier
}

func newLedger(c *mutable.Classifier) *ledger {
	return &ledger{
		changed:    map[string]any{},
		fields:     map[string]fieldState{},
		classifier: c,
	}
}

func (l *ledger) status(name string) fieldStatus {
	return l.fields[name].status
}

func (l *ledger) snapshot(name string) (any, bool) {
	st, ok := l.fields[name]
	if !ok || st.status != snapshotted {
		return nil, false
	}
	return st.snapshot, true
}

// observe classifies v the first time name is read, snapshotting mutable values.
func (l *ledger) observe(name string, v any) {
	if l.status(name) != unchecked {
		return
	}
	if _, ok := l.changed[name]; ok {
		return
	}
	if l.classifier.IsMutable(v) {
		if snap, err := l.classifier.Copy(v); err == nil {
			l.fields[name] = fieldState{status: snapshotted, snapshot: snap}
			return
		}
	}
	l.fields[name] = fieldState{status: baseline}
}

// plan decides how assigning v over old affects name and returns the ledger
// update to apply once the assignment succeeded, or nil if there is none.
func (l *ledger) plan(name string, old, v any) func() {
	if orig, ok := l.changed[name]; ok {
		if equal(orig, v) {
			return func() { delete(l.changed, name) }
		}
		return nil
	}
	if equal(v, old) {
		return nil
	}
	orig := old
	if l.classifier.IsMutable(old) {
		if cp, err := l.classifier.Copy(old); err == nil {
			orig = cp
		}
	}
	return func() {
		if _, ok := l.changed[name]; !ok {
			l.changed[name] = orig
		}
	}
}

// original returns the baseline of name, if it is tracked.
func (l *ledger) original(name string) (any, bool) {
	if v, ok := l.snapshot(name); ok {
		return v, true
	}
	v, ok := l.changed[name]
	return v, ok
}

// tracked returns every name with a recorded baseline, sorted.
func (l *ledger) tracked() []string {
	out := make([]string, 0, len(l.changed)+len(l.fields))
	for name := range l.changed {
		out = append(out, name)
	}
	for name, st := range l.fields {
		if st.status == snapshotted {
			if _, ok := l.changed[name]; !ok {
				out = append(out, name)
			}
		}
	}
	slices.Sort(out)
	return out
}

// dirty returns the sorted names whose live value differs from the baseline.
// live resolves the current value without touching the ledger.
func (l *ledger) dirty(live func(name string) (any, error)) []string {
	out := make([]string, 0, len(l.changed))
	for name := range l.changed {
		out = append(out, name)
	}
	for name, st := range l.fields {
		if st.status != snapshotted {
			continue
		}
		if _, ok := l.changed[name]; ok {
			continue
		}
		v, err := live(name)
		if err != nil || !equal(v, st.snapshot) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func (l *ledger) reset() {
	l.changed = map[string]any{}
	l.fields = map[string]fieldState{}
}

func (l *ledger) resetFields(names ...string) {
	for _, name := range names {
		delete(l.changed, name)
		delete(l.fields, name)
	}
}
