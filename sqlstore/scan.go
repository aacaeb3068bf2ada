package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/mickamy/savechange"
)

// scanOne consumes exactly one row from *sql.Rows into a column map.
func scanOne(rows *sql.Rows) (map[string]any, error) {
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	m := make(map[string]any, len(cols))
	for i, c := range cols {
		m[c] = vals[i]
	}
	return m, nil
}

// decodeRow converts stored column values back to field values.
func decodeRow(s *savechange.Schema, row map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(row))
	for col, v := range row {
		f, ok := s.Field(col)
		if !ok {
			continue
		}
		if f.Codec != nil {
			dv, err := f.Codec.Decode(v)
			if err != nil {
				return nil, fmt.Errorf("sqlstore: decode %s.%s: %w", s.Table(), col, err)
			}
			v = dv
		}
		out[col] = v
	}
	return out, nil
}

func encodeValue(f savechange.Field, v any) (any, error) {
	if f.Codec == nil {
		return v, nil
	}
	return f.Codec.Encode(v)
}
