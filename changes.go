package savechange

import (
	"fmt"
	"slices"
)

// Changes is the read side of a record's tracking state.
type Changes struct {
	r *Record
}

// HasChanged reports whether any field differs from its baseline.
func (c Changes) HasChanged() bool {
	return len(c.ChangedFields()) > 0
}

// ChangedFields returns the sorted names (or columns) that differ from their
// baseline.
func (c Changes) ChangedFields() []string {
	return c.r.ledger.dirty(c.r.live)
}

// OldValues returns a read-only view of the baseline values.
func (c Changes) OldValues() OldValues {
	return OldValues{r: c.r}
}

// Revert restores the named fields to their baseline. With no names every
// tracked field is restored. Unchanged fields are left alone.
func (c Changes) Revert(names ...string) error {
	if len(names) == 0 {
		names = c.r.ledger.tracked()
	}
	for _, name := range names {
		if _, ok := c.r.schema.trackers[name]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, c.r.schema.table, name)
		}
	}
	for _, name := range names {
		if !slices.Contains(c.ChangedFields(), name) {
			continue
		}
		old, _ := c.r.ledger.original(name)
		if c.r.ledger.status(name) == snapshotted {
			cp, err := c.r.schema.classifier.Copy(old)
			if err != nil {
				return fmt.Errorf("savechange: revert %s.%s: %w", c.r.schema.table, name, err)
			}
			old = cp
		}
		if err := c.r.Set(name, old); err != nil {
			return fmt.Errorf("savechange: revert %s.%s: %w", c.r.schema.table, name, err)
		}
	}
	return nil
}
