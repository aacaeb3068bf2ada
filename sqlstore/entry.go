package sqlstore

import (
	"time"
)

// entry is one captured write waiting to be flushed to a history table.
type entry struct {
	table  string
	op     string
	id     any
	before map[string]any // baseline of the written columns; nil for inserts
	after  map[string]any // written columns
	at     time.Time
	meta   Meta
}
