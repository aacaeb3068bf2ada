package memstore

import (
	"github.com/mickamy/savechange/internal/mutable"
)

var classifier = mutable.New()

// cloneRow deep-copies row so stored rows never alias record values.
func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if !classifier.IsMutable(v) {
		return v
	}
	cp, err := classifier.Copy(v)
	if err != nil {
		return v
	}
	return cp
}
