// Package race holds the static race table and resolves informal race names to
// a race configuration.
package race

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/race-results/internal/result"
)

// EventType is a distance offered within a race weekend
type EventType string

const (
	EventMarathon EventType = "Marathon"
	EventHalf     EventType = "Half"
	Event10K      EventType = "10K"
	Event5K       EventType = "5K"
	EventRelay    EventType = "Relay"
)

// SubEvent is one searchable results set within a race year
type SubEvent struct {
	Type EventType
	ID   string
}

// Identifier holds the platform-specific ids for one race year. Which fields
// are set depends on the platform.
type Identifier struct {
	RaceID    string     // RunSignUp race id
	EventID   string     // MyChipTime, MyRace.ai, RaceRoster, RTRT event id
	BaseURL   string     // Mika Timing per-year results host
	Code      string     // NYRR event code
	SubEvents []SubEvent // searched in order; first with a name match wins
}

// IdentifierPattern derives identifiers for a closed range of years by
// substituting {year} into the event id
type IdentifierPattern struct {
	EventID   string
	FirstYear int
	LastYear  int
	SubEvents []SubEvent
}

// Resolve builds the identifier for year, or false outside the pattern's range
func (p IdentifierPattern) Resolve(year int) (Identifier, bool) {
	if year < p.FirstYear || year > p.LastYear {
		return Identifier{}, false
	}
	y := strconv.Itoa(year)
	id := Identifier{EventID: strings.ReplaceAll(p.EventID, "{year}", y)}
	for _, sub := range p.SubEvents {
		id.SubEvents = append(id.SubEvents, SubEvent{Type: sub.Type, ID: strings.ReplaceAll(sub.ID, "{year}", y)})
	}
	return id, true
}

// RaceConfig describes one race and how to reach its results platform
type RaceConfig struct {
	Platform result.Platform
	Name     string
	Tag      string
	Aliases  []string
	Keywords []string

	// KeywordRequiresMarathon gates keyword matches on the input also
	// naming a marathon, for keywords like city names that are shared with
	// other events
	KeywordRequiresMarathon bool

	EventTypes []EventType

	// Priority orders configs when more than one matches at the same
	// resolution step; lower wins, ties keep registration order
	Priority int

	DateRule    DateRule
	Identifiers map[int]Identifier
	Pattern     *IdentifierPattern
}

// clone returns a copy that shares no slices or maps with c
func (c RaceConfig) clone() RaceConfig {
	out := c
	out.Aliases = append([]string(nil), c.Aliases...)
	out.Keywords = append([]string(nil), c.Keywords...)
	out.EventTypes = append([]EventType(nil), c.EventTypes...)
	if c.Identifiers != nil {
		out.Identifiers = make(map[int]Identifier, len(c.Identifiers))
		for y, id := range c.Identifiers {
			id.SubEvents = append([]SubEvent(nil), id.SubEvents...)
			out.Identifiers[y] = id
		}
	}
	if c.Pattern != nil {
		p := *c.Pattern
		p.SubEvents = append([]SubEvent(nil), p.SubEvents...)
		out.Pattern = &p
	}
	return out
}

// Date returns the race date in the given year
func (c RaceConfig) Date(year int) time.Time {
	return c.DateRule(year)
}

// IdentifierFor returns the platform identifier for a year. Explicit entries
// take precedence over the pattern. Years without either are unsupported.
func (c RaceConfig) IdentifierFor(year int) (Identifier, bool) {
	if id, ok := c.Identifiers[year]; ok {
		return id, true
	}
	if c.Pattern != nil {
		return c.Pattern.Resolve(year)
	}
	return Identifier{}, false
}

// Years lists the explicitly configured years in ascending order
func (c RaceConfig) Years() []int {
	years := make([]int, 0, len(c.Identifiers))
	for y := range c.Identifiers {
		years = append(years, y)
	}
	if c.Pattern != nil {
		for y := c.Pattern.FirstYear; y <= c.Pattern.LastYear; y++ {
			if _, ok := c.Identifiers[y]; !ok {
				years = append(years, y)
			}
		}
	}
	sort.Ints(years)
	return years
}

// Offers reports whether the race includes an event type
func (c RaceConfig) Offers(t EventType) bool {
	for _, et := range c.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}
