package query

import (
	"strconv"
	"strings"

	"github.com/mickamy/savechange/internal/ident"
)

// Placeholder renders the i-th (1-based) bind parameter.
type Placeholder func(i int) string

// Dollar renders Postgres style placeholders ($1, $2, ...).
func Dollar(i int) string {
	return "$" + strconv.Itoa(i)
}

// Question renders SQLite/MySQL style placeholders.
func Question(int) string {
	return "?"
}

// Insert builds INSERT INTO table (cols...) VALUES (...).
func Insert(table string, cols []string, ph Placeholder) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ident.QuoteTable(table))
	b.WriteString(" (")
	b.WriteString(ident.QuoteList(cols))
	b.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ph(i + 1))
	}
	b.WriteString(")")
	return b.String()
}

// Update builds UPDATE table SET cols... WHERE key = ?. The key is bound last.
func Update(table string, cols []string, key string, ph Placeholder) string {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(ident.QuoteTable(table))
	b.WriteString(" SET ")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident.Quote(c))
		b.WriteString(" = ")
		b.WriteString(ph(i + 1))
	}
	b.WriteString(" WHERE ")
	b.WriteString(ident.Quote(key))
	b.WriteString(" = ")
	b.WriteString(ph(len(cols) + 1))
	return b.String()
}

// Select builds SELECT cols... FROM table WHERE key = ?.
func Select(table string, cols []string, key string, ph Placeholder) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(ident.QuoteList(cols))
	b.WriteString(" FROM ")
	b.WriteString(ident.QuoteTable(table))
	b.WriteString(" WHERE ")
	b.WriteString(ident.Quote(key))
	b.WriteString(" = ")
	b.WriteString(ph(1))
	return b.String()
}
