package order

import (
	"sort"
	"strings"
	"time"

	"github.com/pfrederiksen/race-results/internal/result"
)

// Status is where an order stands in the enrichment workflow. Besides
// StatusPending and StatusManual it carries the lookup status string.
type Status string

const (
	StatusPending Status = "pending"
	// StatusManual marks orders whose finish time was entered by hand
	StatusManual Status = "manual"
)

// Order is one storefront order as imported
type Order struct {
	Number     string `json:"number"`
	RunnerName string `json:"runner_name"`
	RaceName   string `json:"race_name"`
	OrderDate  string `json:"order_date"`
	Year       *int   `json:"year,omitempty"`
}

// Overrides are manual corrections that take precedence over imported fields
type Overrides struct {
	RunnerName string `json:"runner_name,omitempty"`
	RaceName   string `json:"race_name,omitempty"`
	Year       *int   `json:"year,omitempty"`
	FinishTime string `json:"finish_time,omitempty"`
	Bib        string `json:"bib,omitempty"`
}

// Empty reports whether no override is set
func (o Overrides) Empty() bool {
	return o.RunnerName == "" && o.RaceName == "" && o.Year == nil && o.FinishTime == "" && o.Bib == ""
}

// Record is an order with its enrichment state
type Record struct {
	Order     Order                `json:"order"`
	Overrides Overrides            `json:"overrides"`
	Status    Status               `json:"status"`
	Result    *result.MatchResult  `json:"result,omitempty"`
	Matches   []result.MatchResult `json:"matches,omitempty"`
	LastError string               `json:"last_error,omitempty"`
	Attempts  int                  `json:"attempts"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// RunnerName returns the overridden runner name, or the imported one
func (r *Record) RunnerName() string {
	if v := strings.TrimSpace(r.Overrides.RunnerName); v != "" {
		return v
	}
	return r.Order.RunnerName
}

// RaceName returns the overridden race name, or the imported one
func (r *Record) RaceName() string {
	if v := strings.TrimSpace(r.Overrides.RaceName); v != "" {
		return v
	}
	return r.Order.RaceName
}

// Year returns the overridden or imported year; zero means it must be
// derived from the order date
func (r *Record) Year() int {
	switch {
	case r.Overrides.Year != nil:
		return *r.Overrides.Year
	case r.Order.Year != nil:
		return *r.Order.Year
	}
	return 0
}

// Due reports whether the record still needs a lookup. Records that ended
// in a state needing review stay put until their inputs change.
func (r *Record) Due() bool {
	if r.Overrides.FinishTime != "" {
		return r.Status != StatusManual
	}
	switch r.Status {
	case "", StatusPending, "failed-transient":
		return true
	}
	return false
}

// SetOverrides replaces the record's overrides and queues it for another
// lookup. A finish time override is applied by the next run without a lookup.
func (r *Record) SetOverrides(o Overrides, now time.Time) {
	r.Overrides = o
	r.Status = StatusPending
	r.Result = nil
	r.Matches = nil
	r.LastError = ""
	r.Attempts = 0
	r.UpdatedAt = now
}

// Book is the full set of tracked orders
type Book struct {
	Orders    map[string]*Record `json:"orders"` // keyed by Order.Number
	ChangeLog []*Change          `json:"change_log"`
	UpdatedAt string             `json:"updated_at"` // RFC3339 timestamp
}

// NewBook creates an empty book
func NewBook() *Book {
	return &Book{
		Orders:    make(map[string]*Record),
		ChangeLog: make([]*Change, 0),
	}
}

// Numbers returns the order numbers in ascending order
func (b *Book) Numbers() []string {
	numbers := make([]string, 0, len(b.Orders))
	for n := range b.Orders {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	return numbers
}

// Due returns the records that need a lookup, ordered by number
func (b *Book) Due() []*Record {
	var due []*Record
	for _, n := range b.Numbers() {
		if rec := b.Orders[n]; rec.Due() {
			due = append(due, rec)
		}
	}
	return due
}

// Counts tallies records per status
func (b *Book) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, rec := range b.Orders {
		status := rec.Status
		if status == "" {
			status = StatusPending
		}
		counts[status]++
	}
	return counts
}
