package savechange_test

import (
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mickamy/savechange"
)

func TestRecord_InitialState(t *testing.T) {
	t.Parallel()

	_, r := loadPost(t, savechange.TrackChanges())
	c := mustChanges(t, r)

	if r.Adding() {
		t.Fatalf("loaded record reports Adding")
	}
	if c.HasChanged() {
		t.Fatalf("HasChanged() = true on a fresh record")
	}
	if got := c.ChangedFields(); len(got) != 0 {
		t.Fatalf("ChangedFields() = %v, want empty", got)
	}
}

func TestRecord_RoundTripCancellation(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name     string
		field    string
		changeTo any
	}{
		{name: "int", field: "count", changeTo: 6},
		{name: "string", field: "title", changeTo: "bye"},
		{name: "time", field: "published_at", changeTo: publishedAt.Add(time.Minute)},
		{name: "nil", field: "title", changeTo: nil},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, r := loadPost(t, savechange.TrackChanges())
			c := mustChanges(t, r)
			orig := mustGet(t, r, tc.field)

			mustSet(t, r, tc.field, tc.changeTo)
			if got := c.ChangedFields(); !slices.Equal(got, []string{tc.field}) {
				t.Fatalf("ChangedFields() = %v, want [%s]", got, tc.field)
			}
			mustSet(t, r, tc.field, orig)
			if got := c.ChangedFields(); len(got) != 0 {
				t.Fatalf("ChangedFields() after round trip = %v, want empty", got)
			}
			if c.HasChanged() {
				t.Fatalf("HasChanged() = true after round trip")
			}
		})
	}
}

func TestRecord_FirstChangeWins(t *testing.T) {
	t.Parallel()

	_, r := loadPost(t, savechange.TrackChanges())
	c := mustChanges(t, r)

	mustSet(t, r, "count", 6)
	mustSet(t, r, "count", 7)

	old, err := c.OldValues().Get("count")
	if err != nil {
		t.Fatalf("OldValues().Get: %v", err)
	}
	if old != 5 {
		t.Fatalf("old count = %v, want 5", old)
	}
	if got := mustGet(t, r, "count"); got != 7 {
		t.Fatalf("count = %v, want 7", got)
	}
}

func TestRecord_MutableSnapshotIsolation(t *testing.T) {
	t.Parallel()

	_, r := loadPost(t, savechange.TrackChanges())
	c := mustChanges(t, r)

	tags := mustGet(t, r, "tags").([]string)
	tags[0] = "z"

	if !c.HasChanged() {
		t.Fatalf("HasChanged() = false after in-place mutation")
	}
	if got := c.ChangedFields(); !slices.Equal(got, []string{"tags"}) {
		t.Fatalf("ChangedFields() = %v, want [tags]", got)
	}
	old, err := c.OldValues().Get("tags")
	if err != nil {
		t.Fatalf("OldValues().Get: %v", err)
	}
	if !reflect.DeepEqual(old, []string{"a", "b"}) {
		t.Fatalf("old tags = %v, want [a b]", old)
	}
	if live := mustGet(t, r, "tags"); !reflect.DeepEqual(live, []string{"z", "b"}) {
		t.Fatalf("live tags = %v, want [z b]", live)
	}
}

func TestRecord_SnapshotReassignment(t *testing.T) {
	t.Parallel()

	_, r := loadPost(t, savechange.TrackChanges())
	c := mustChanges(t, r)

	_ = mustGet(t, r, "tags")
	mustSet(t, r, "tags", []string{"c"})
	if got := c.ChangedFields(); !slices.Equal(got, []string{"tags"}) {
		t.Fatalf("ChangedFields() = %v, want [tags]", got)
	}

	// an equal, distinct slice cancels the change
	mustSet(t, r, "tags", []string{"a", "b"})
	if c.HasChanged() {
		t.Fatalf("HasChanged() = true after restoring an equal value")
	}
}

func TestRecord_EqualMethodComparison(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name    string
		field   string
		v       any
		changed bool
	}{
		{name: "same instant other zone", field: "published_at", v: publishedAt.In(time.FixedZone("CET", 3600)), changed: false},
		{name: "later instant", field: "published_at", v: publishedAt.Add(time.Hour), changed: true},
		{name: "same decimal other scale", field: "price", v: decimal.RequireFromString("1.5"), changed: false},
		{name: "other decimal", field: "price", v: decimal.RequireFromString("2"), changed: true},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, r := loadPost(t, savechange.TrackChanges())
			mustSet(t, r, tc.field, tc.v)
			if got := mustChanges(t, r).HasChanged(); got != tc.changed {
				t.Fatalf("HasChanged() = %v, want %v", got, tc.changed)
			}
		})
	}
}

func TestRecord_Relation(t *testing.T) {
	t.Parallel()

	_, r := loadPost(t, savechange.TrackChanges())
	c := mustChanges(t, r)

	got := mustGet(t, r, "author").(*author)
	if got.Name != "ann" {
		t.Fatalf("author = %+v, want ann", got)
	}

	mustSet(t, r, "author", &author{ID: 2, Name: "bob"})
	// author was read first, so it is compared against its snapshot
	if changed := c.ChangedFields(); !slices.Equal(changed, []string{"author", "author_id"}) {
		t.Fatalf("ChangedFields() = %v, want [author author_id]", changed)
	}
	if id := mustGet(t, r, "author_id"); id != 2 {
		t.Fatalf("author_id = %v, want 2", id)
	}
	old, err := c.OldValues().Get("author_id")
	if err != nil {
		t.Fatalf("OldValues().Get: %v", err)
	}
	if old != 1 {
		t.Fatalf("old author_id = %v, want 1", old)
	}
}

func TestRecord_RelationAssignedWithoutRead(t *testing.T) {
	t.Parallel()

	_, r := loadPost(t, savechange.TrackChanges())
	c := mustChanges(t, r)

	mustSet(t, r, "author", &author{ID: 2, Name: "bob"})
	if got := c.ChangedFields(); !slices.Equal(got, []string{"author", "author_id"}) {
		t.Fatalf("ChangedFields() = %v, want [author author_id]", got)
	}
	old, err := c.OldValues().Get("author")
	if err != nil {
		t.Fatalf("OldValues().Get: %v", err)
	}
	if a := old.(*author); a.ID != 1 {
		t.Fatalf("old author = %+v, want id 1", a)
	}
}

func TestRecord_RelationFollowsIdentifierColumn(t *testing.T) {
	t.Parallel()

	_, r := loadPost(t, savechange.TrackChanges())

	if got := mustGet(t, r, "author").(*author); got.ID != 1 {
		t.Fatalf("author = %+v, want id 1", got)
	}
	mustSet(t, r, "author_id", 2)
	got := mustGet(t, r, "author").(*author)
	if got.ID != 2 || got.Name != "bob" {
		t.Fatalf("author after author_id = 2: %+v, want bob", got)
	}

	// same identifier keeps the hydrated object
	mustSet(t, r, "author_id", 2)
	if again := mustGet(t, r, "author").(*author); again != got {
		t.Fatalf("author reloaded for an unchanged identifier")
	}
}

func TestRecord_RelationMissingRelatedRow(t *testing.T) {
	t.Parallel()

	schema := savechange.MustRegister("posts", postFields(), savechange.TrackChanges())
	row := postRow(1)
	row["author_id"] = 99
	r, err := schema.Load(row)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := r.Get("author"); !errors.Is(err, savechange.ErrDoesNotExist) {
		t.Fatalf("Get(author) error = %v, want ErrDoesNotExist", err)
	}
	if err := r.Set("author", &author{ID: 2}); err != nil {
		t.Fatalf("Set(author) with missing related row: %v", err)
	}
	if got := mustChanges(t, r).ChangedFields(); !slices.Equal(got, []string{"author_id"}) {
		t.Fatalf("ChangedFields() = %v, want [author_id]", got)
	}
}

func TestRecord_UnknownNames(t *testing.T) {
	t.Parallel()

	_, r := loadPost(t, savechange.TrackChanges())

	if _, err := r.Get("missing"); !errors.Is(err, savechange.ErrUnknownField) {
		t.Fatalf("Get(missing) error = %v, want ErrUnknownField", err)
	}
	mustSet(t, r, "scratch", 1)
	if got := mustGet(t, r, "scratch"); got != 1 {
		t.Fatalf("scratch = %v, want 1", got)
	}
	if got := mustChanges(t, r).ChangedFields(); len(got) != 0 {
		t.Fatalf("ChangedFields() = %v, want untracked write", got)
	}
}

func TestRecord_NewRejectsUnknownColumns(t *testing.T) {
	t.Parallel()

	schema := savechange.MustRegister("posts", postFields())
	if _, err := schema.New(map[string]any{"id": 1, "nope": true}); !errors.Is(err, savechange.ErrUnknownField) {
		t.Fatalf("New error = %v, want ErrUnknownField", err)
	}
}

func TestRecord_NewWithRelatedObject(t *testing.T) {
	t.Parallel()

	schema := savechange.MustRegister("posts", postFields(), savechange.TrackChanges())
	r, err := schema.New(map[string]any{"id": 3, "author": &author{ID: 2, Name: "bob"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !r.Adding() {
		t.Fatalf("new record does not report Adding")
	}
	if got := mustGet(t, r, "author_id"); got != 2 {
		t.Fatalf("author_id = %v, want 2", got)
	}
	if got := mustChanges(t, r).ChangedFields(); len(got) != 0 {
		t.Fatalf("ChangedFields() = %v, want empty after construction", got)
	}
}

func TestValue(t *testing.T) {
	t.Parallel()

	_, r := loadPost(t)

	title, err := savechange.Value[string](r, "title")
	if err != nil || title != "hello" {
		t.Fatalf("Value[string](title) = %q, %v", title, err)
	}
	if _, err := savechange.Value[string](r, "count"); err == nil {
		t.Fatalf("Value[string](count) succeeded, want type error")
	}
}
