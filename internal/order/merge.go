package order

import (
	"strconv"
	"time"
)

// maxChangeLog bounds the change log kept in a book
const maxChangeLog = 500

// Change records an imported field that differs from the stored order
type Change struct {
	Number     string    `json:"number"`
	Field      string    `json:"field"` // "new", "runner_name", "race_name", "order_date", "year"
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// MergeResult lists the records touched by an import
type MergeResult struct {
	Added   []*Record
	Changed []*Record
	Changes []*Change
}

// Merge adds imported orders to the book. New orders start pending; orders
// whose lookup inputs changed are reset to pending so they are looked up
// again. Overrides and unchanged records are left alone.
func Merge(book *Book, incoming []Order, now time.Time) *MergeResult {
	res := &MergeResult{}

	for _, o := range incoming {
		if o.Number == "" {
			continue
		}

		rec, exists := book.Orders[o.Number]
		if !exists {
			rec = &Record{Order: o, Status: StatusPending, UpdatedAt: now}
			book.Orders[o.Number] = rec
			res.Added = append(res.Added, rec)
			res.Changes = append(res.Changes, &Change{
				Number:     o.Number,
				Field:      "new",
				NewValue:   o.RunnerName,
				DetectedAt: now,
			})
			continue
		}

		changes := DetectChanges(rec.Order, o, now)
		if len(changes) == 0 {
			continue
		}

		rec.Order = o
		if rec.Status != StatusManual {
			rec.Status = StatusPending
			rec.Result = nil
			rec.Matches = nil
			rec.LastError = ""
			rec.Attempts = 0
		}
		rec.UpdatedAt = now
		res.Changed = append(res.Changed, rec)
		res.Changes = append(res.Changes, changes...)
	}

	book.ChangeLog = append(book.ChangeLog, res.Changes...)
	if over := len(book.ChangeLog) - maxChangeLog; over > 0 {
		book.ChangeLog = book.ChangeLog[over:]
	}

	return res
}

// DetectChanges compares the lookup inputs of two versions of an order
func DetectChanges(previous, current Order, now time.Time) []*Change {
	var changes []*Change

	add := func(field, old, cur string) {
		if old != cur {
			changes = append(changes, &Change{
				Number:     current.Number,
				Field:      field,
				OldValue:   old,
				NewValue:   cur,
				DetectedAt: now,
			})
		}
	}

	add("runner_name", previous.RunnerName, current.RunnerName)
	add("race_name", previous.RaceName, current.RaceName)
	add("order_date", previous.OrderDate, current.OrderDate)
	add("year", yearText(previous.Year), yearText(current.Year))

	return changes
}

func yearText(y *int) string {
	if y == nil {
		return ""
	}
	return strconv.Itoa(*y)
}
