package memstore_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/mickamy/savechange"
	"github.com/mickamy/savechange/memstore"
)

func schema(t *testing.T) *savechange.Schema {
	t.Helper()

	s, err := savechange.Register("items", []savechange.Field{
		{Name: "id"},
		{Name: "name"},
		{Name: "labels"},
	}, savechange.SaveTheChange())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return s
}

func TestStore_PutIsolatesRows(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	labels := []string{"a"}
	store.Put("items", 1, map[string]any{"id": 1, "name": "x", "labels": labels})
	labels[0] = "changed"

	row, ok := store.Row("items", 1)
	if !ok {
		t.Fatalf("Row not found")
	}
	if !reflect.DeepEqual(row["labels"], []string{"a"}) {
		t.Fatalf("labels = %v, want [a]", row["labels"])
	}
	row["name"] = "y"
	if again, _ := store.Row("items", 1); again["name"] != "x" {
		t.Fatalf("Row returned a shared map")
	}
}

func TestStore_Write(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := schema(t)

	tcs := []struct {
		name  string
		seed  bool
		write savechange.Write
		err   error
		want  map[string]any
	}{
		{name: "insert", write: savechange.Write{Adding: true}, want: map[string]any{"id": 1, "name": "new", "labels": []string{"b"}}},
		{name: "insert duplicate", seed: true, write: savechange.Write{Adding: true}, err: memstore.ErrDuplicateKey},
		{name: "full update", seed: true, write: savechange.Write{}, want: map[string]any{"id": 1, "name": "new", "labels": []string{"b"}}},
		{name: "full update of missing row inserts", write: savechange.Write{}, want: map[string]any{"id": 1, "name": "new", "labels": []string{"b"}}},
		{name: "partial update", seed: true, write: savechange.Write{Fields: []string{"name"}}, want: map[string]any{"id": 1, "name": "new", "labels": []string{"a"}}},
		{name: "partial update of missing row", write: savechange.Write{Fields: []string{"name"}}, err: memstore.ErrNoRowsUpdated},
		{name: "forced update of missing row", write: savechange.Write{ForceUpdate: true}, err: memstore.ErrNoRowsUpdated},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := memstore.New()
			if tc.seed {
				store.Put("items", 1, map[string]any{"id": 1, "name": "old", "labels": []string{"a"}})
			}
			r, err := s.Load(map[string]any{"id": 1, "name": "new", "labels": []string{"b"}})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}

			err = store.Write(ctx, r, tc.write)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("Write error = %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			row, _ := store.Row("items", 1)
			if !reflect.DeepEqual(row, tc.want) {
				t.Fatalf("row = %v, want %v", row, tc.want)
			}
			if got := store.Writes("items"); len(got) != 1 {
				t.Fatalf("Writes = %d, want 1", len(got))
			}
		})
	}
}

func TestStore_FetchAndFind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := schema(t)
	store := memstore.New()
	store.Put("items", 1, map[string]any{"id": 1, "name": "x", "labels": []string{"a"}})

	r, err := store.Find(s, 1)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	got, err := store.Fetch(ctx, r, []string{"name"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]any{"name": "x"}) {
		t.Fatalf("Fetch = %v", got)
	}
	if _, err := store.Fetch(ctx, r, []string{"nope"}); !errors.Is(err, savechange.ErrUnknownField) {
		t.Fatalf("Fetch(nope) error = %v, want ErrUnknownField", err)
	}
	if _, err := store.Find(s, 2); !errors.Is(err, memstore.ErrNotFound) {
		t.Fatalf("Find(2) error = %v, want ErrNotFound", err)
	}
}

func TestStore_FailWith(t *testing.T) {
	t.Parallel()

	s := schema(t)
	store := memstore.New()
	r, err := s.New(map[string]any{"id": 1, "name": "x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	boom := errors.New("boom")
	store.FailWith(boom)
	if err := r.Save(context.Background(), store); !errors.Is(err, boom) {
		t.Fatalf("Save error = %v, want boom", err)
	}
	if !r.Adding() {
		t.Fatalf("record left Adding after failed insert")
	}
	if got := store.Writes("items"); len(got) != 0 {
		t.Fatalf("failed write recorded: %v", got)
	}

	store.FailWith(nil)
	if err := r.Save(context.Background(), store); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := store.Row("items", 1); !ok {
		t.Fatalf("row not stored")
	}
}
