// Package postprocess removes duplicate records and orders them by date.
package postprocess

import (
	"sort"
	"time"

	"github.com/joseph-ayodele/statement-extractor/internal/entity"
)

const descriptionKeyLen = 10

// Process dedupes then sorts. Running it on its own output changes nothing.
func Process(records []entity.Record) []entity.Record {
	return SortByDate(Dedupe(records))
}

// DedupeKey is Date + primary amount + first ten characters of Description.
func DedupeKey(r entity.Record) string {
	desc := []rune(r.Description)
	if len(desc) > descriptionKeyLen {
		desc = desc[:descriptionKeyLen]
	}
	return r.Date + "\x00" + r.PrimaryAmount() + "\x00" + string(desc)
}

// Dedupe keeps the first record seen for each key.
func Dedupe(records []entity.Record) []entity.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]entity.Record, 0, len(records))
	for _, r := range records {
		k := DedupeKey(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// SortByDate orders records with a parseable Date ascending, stable for
// equal dates. Records whose Date does not parse stay in their slots.
func SortByDate(records []entity.Record) []entity.Record {
	out := make([]entity.Record, len(records))
	copy(out, records)

	type dated struct {
		rec entity.Record
		at  time.Time
	}
	var slots []int
	var items []dated
	for i, r := range out {
		if t, ok := ParseDate(r.Date); ok {
			slots = append(slots, i)
			items = append(items, dated{rec: r, at: t})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].at.Before(items[j].at)
	})
	for k, slot := range slots {
		out[slot] = items[k].rec
	}
	return out
}
