package savechange_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mickamy/savechange"
	"github.com/mickamy/savechange/memstore"
)

type author struct {
	ID   int
	Name string
}

var authors = map[int]author{
	1: {ID: 1, Name: "ann"},
	2: {ID: 2, Name: "bob"},
}

func authorKey() savechange.ForeignKey {
	return savechange.ForeignKey{
		Resolve: func(id any) (any, error) {
			a, ok := authors[id.(int)]
			if !ok {
				return nil, savechange.ErrDoesNotExist
			}
			return &a, nil
		},
		Key: func(obj any) any { return obj.(*author).ID },
	}
}

var publishedAt = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

func postFields() []savechange.Field {
	return []savechange.Field{
		{Name: "id", Primary: true},
		{Name: "title"},
		{Name: "count"},
		{Name: "tags"},
		{Name: "author", Column: "author_id", Accessor: authorKey()},
		{Name: "published_at"},
		{Name: "price"},
	}
}

func postRow(id int) map[string]any {
	return map[string]any{
		"id":           id,
		"title":        "hello",
		"count":        5,
		"tags":         []string{"a", "b"},
		"author_id":    1,
		"published_at": publishedAt,
		"price":        decimal.RequireFromString("1.50"),
	}
}

// loadPost registers the posts schema, seeds one row and loads it back.
func loadPost(t *testing.T, opts ...savechange.Option) (*memstore.Store, *savechange.Record) {
	t.Helper()

	schema, err := savechange.Register("posts", postFields(), opts...)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	store := memstore.New()
	store.Put("posts", 1, postRow(1))
	r, err := store.Find(schema, 1)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	return store, r
}

func mustChanges(t *testing.T, r *savechange.Record) savechange.Changes {
	t.Helper()

	c, ok := r.Changes()
	if !ok {
		t.Fatalf("schema %s does not track changes", r.Schema().Table())
	}
	return c
}

func mustGet(t *testing.T, r *savechange.Record, name string) any {
	t.Helper()

	v, err := r.Get(name)
	if err != nil {
		t.Fatalf("Get(%q): %v", name, err)
	}
	return v
}

func mustSet(t *testing.T, r *savechange.Record, name string, v any) {
	t.Helper()

	if err := r.Set(name, v); err != nil {
		t.Fatalf("Set(%q): %v", name, err)
	}
}
