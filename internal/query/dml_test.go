package query_test

import (
	"testing"

	"github.com/mickamy/savechange/internal/query"
)

func TestInsert(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name  string
		table string
		cols  []string
		ph    query.Placeholder
		want  string
	}{
		{
			name:  "dollar",
			table: "posts",
			cols:  []string{"id", "title"},
			ph:    query.Dollar,
			want:  `INSERT INTO "posts" ("id", "title") VALUES ($1, $2)`,
		},
		{
			name:  "question qualified",
			table: "public.posts",
			cols:  []string{"id"},
			ph:    query.Question,
			want:  `INSERT INTO "public"."posts" ("id") VALUES (?)`,
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := query.Insert(tc.table, tc.cols, tc.ph); got != tc.want {
				t.Fatalf("Insert() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name string
		cols []string
		ph   query.Placeholder
		want string
	}{
		{
			name: "single column",
			cols: []string{"title"},
			ph:   query.Dollar,
			want: `UPDATE "posts" SET "title" = $1 WHERE "id" = $2`,
		},
		{
			name: "several columns",
			cols: []string{"title", "author_id"},
			ph:   query.Question,
			want: `UPDATE "posts" SET "title" = ?, "author_id" = ? WHERE "id" = ?`,
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := query.Update("posts", tc.cols, "id", tc.ph); got != tc.want {
				t.Fatalf("Update() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	got := query.Select("posts", []string{"id", "title"}, "id", query.Dollar)
	want := `SELECT "id", "title" FROM "posts" WHERE "id" = $1`
	if got != want {
		t.Fatalf("Select() = %q, want %q", got, want)
	}
}
