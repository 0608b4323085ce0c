package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pfrederiksen/race-results/internal/calendar"
	"github.com/pfrederiksen/race-results/internal/dispatch"
	"github.com/pfrederiksen/race-results/internal/order"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	// FormatICS is only offered by the races command
	FormatICS OutputFormat = "ics"
)

func parseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return format, nil
}

// textWriter renders a command result for people
type textWriter interface {
	writeText(w io.Writer, verbose bool) error
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result textWriter, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return result.writeText(w, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// LookupOutput is the result of the lookup command
type LookupOutput struct {
	LookupID  string               `json:"lookup_id"`
	CheckedAt time.Time            `json:"checked_at"`
	Runner    string               `json:"runner"`
	Requested string               `json:"requested_race"`
	Race      string               `json:"race,omitempty"`
	Platform  result.Platform      `json:"platform,omitempty"`
	Year      int                  `json:"year"`
	Status    dispatch.Status      `json:"status"`
	Results   []result.MatchResult `json:"results"`
	Scanned   int                  `json:"rows_scanned"`
	Suggested []string             `json:"suggested_names,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func newLookupOutput(q dispatch.RunnerQuery, out dispatch.Outcome) *LookupOutput {
	lo := &LookupOutput{
		LookupID:  out.LookupID,
		CheckedAt: time.Now().UTC(),
		Runner:    q.Runner,
		Requested: q.RaceName,
		Race:      out.Race.Name,
		Platform:  out.Race.Platform,
		Year:      q.Year,
		Status:    out.Status,
		Results:   out.Results,
		Scanned:   out.Candidates,
		Suggested: out.Suggestions,
	}
	if q.Tag != "" {
		lo.Requested = q.Tag
	}
	if lo.Results == nil {
		lo.Results = []result.MatchResult{}
	}
	if out.Err != nil {
		lo.Error = out.Err.Error()
	}
	return lo
}

func (o *LookupOutput) writeText(w io.Writer, verbose bool) error {
	raceName := o.Race
	if raceName == "" {
		raceName = "unknown race"
	}

	switch o.Status {
	case dispatch.StatusUnsupportedRace:
		fmt.Fprintf(w, "Race not supported: %s\n", o.Requested)
		return nil
	case dispatch.StatusNotFound:
		fmt.Fprintf(w, "No result for %s in %s %d.\n", o.Runner, raceName, o.Year)
		if len(o.Suggested) > 0 {
			fmt.Fprintf(w, "  Similar names: %s\n", strings.Join(o.Suggested, ", "))
		}
		if o.Error != "" {
			fmt.Fprintf(w, "  %s\n", o.Error)
		}
		return nil
	case dispatch.StatusFailedTransient, dispatch.StatusFailedPermanent:
		fmt.Fprintf(w, "Lookup failed (%s) for %s in %s %d: %s\n", o.Status, o.Runner, raceName, o.Year, o.Error)
		return nil
	case dispatch.StatusAmbiguous:
		fmt.Fprintf(w, "%d possible results for %s in %s %d:\n", len(o.Results), o.Runner, raceName, o.Year)
	default:
		fmt.Fprintf(w, "%s %d (%s):\n", raceName, o.Year, o.Platform)
	}

	for _, r := range o.Results {
		writeMatch(w, "  ", r, verbose)
	}
	if verbose {
		fmt.Fprintf(w, "\nLookup %s, %d rows scanned\n", o.LookupID, o.Scanned)
	}
	return nil
}

func writeMatch(w io.Writer, indent string, r result.MatchResult, verbose bool) {
	fmt.Fprintf(w, "%s%s  %s", indent, r.Name, r.FinishTimeText())
	if r.Place != nil {
		fmt.Fprintf(w, "  place %d", *r.Place)
	}
	if r.Bib != "" {
		fmt.Fprintf(w, "  bib %s", r.Bib)
	}
	fmt.Fprintln(w)

	if verbose {
		if r.DivPlace != nil {
			fmt.Fprintf(w, "%s     Division place: %d\n", indent, *r.DivPlace)
		}
		if r.EventType != "" {
			fmt.Fprintf(w, "%s     Event: %s\n", indent, r.EventType)
		}
		if r.Kind != "" {
			fmt.Fprintf(w, "%s     Match: %s\n", indent, r.Kind)
		}
		if r.SourceURL != "" {
			fmt.Fprintf(w, "%s     Source: %s\n", indent, r.SourceURL)
		}
	}
}

// RaceEntry describes one supported race
type RaceEntry struct {
	Tag        string           `json:"tag"`
	Name       string           `json:"name"`
	Platform   result.Platform  `json:"platform"`
	Aliases    []string         `json:"aliases"`
	EventTypes []race.EventType `json:"event_types"`
	Years      []int            `json:"years"`
	NextDate   string           `json:"next_date,omitempty"`
}

// raceCalendar renders the next date of every race as an iCalendar feed
func raceCalendar(races []RaceEntry, now time.Time) string {
	events := make([]calendar.Event, 0, len(races))
	for _, r := range races {
		date, err := time.Parse("2006-01-02", r.NextDate)
		if err != nil {
			continue
		}
		events = append(events, calendar.Event{
			UID:         fmt.Sprintf("%s-%d@race-results", r.Tag, date.Year()),
			Summary:     r.Name,
			Description: fmt.Sprintf("Results on %s", r.Platform),
			Date:        date,
		})
	}
	return calendar.GenerateICS("Race Results", events, now)
}

// RacesOutput is the result of the races command
type RacesOutput struct {
	Races []RaceEntry `json:"races"`
	Count int         `json:"count"`
}

func newRacesOutput(configs []race.RaceConfig, now time.Time) *RacesOutput {
	out := &RacesOutput{Races: make([]RaceEntry, 0, len(configs))}
	for _, c := range configs {
		entry := RaceEntry{
			Tag:        c.Tag,
			Name:       c.Name,
			Platform:   c.Platform,
			Aliases:    c.Aliases,
			EventTypes: c.EventTypes,
			Years:      c.Years(),
		}
		if c.DateRule != nil {
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			next := c.Date(now.Year())
			if next.Before(today) {
				next = c.Date(now.Year() + 1)
			}
			entry.NextDate = next.Format("2006-01-02")
		}
		out.Races = append(out.Races, entry)
	}
	out.Count = len(out.Races)
	return out
}

func (o *RacesOutput) writeText(w io.Writer, verbose bool) error {
	if o.Count == 0 {
		fmt.Fprintln(w, "No races configured.")
		return nil
	}

	for _, r := range o.Races {
		fmt.Fprintf(w, "%-8s %-34s %-11s %s\n", r.Tag, r.Name, r.Platform, yearRange(r.Years))
		if verbose {
			if len(r.Aliases) > 0 {
				fmt.Fprintf(w, "         Aliases: %s\n", strings.Join(r.Aliases, ", "))
			}
			if len(r.EventTypes) > 0 {
				types := make([]string, len(r.EventTypes))
				for i, t := range r.EventTypes {
					types[i] = string(t)
				}
				fmt.Fprintf(w, "         Events: %s\n", strings.Join(types, ", "))
			}
			if r.NextDate != "" {
				fmt.Fprintf(w, "         Next race: %s\n", r.NextDate)
			}
		}
	}
	fmt.Fprintf(w, "\nTotal: %d races\n", o.Count)
	return nil
}

// yearRange renders years compactly, e.g. "2022-2025" or "2019, 2022-2025"
func yearRange(years []int) string {
	if len(years) == 0 {
		return "no years"
	}

	var parts []string
	start, prev := years[0], years[0]
	flush := func() {
		if start == prev {
			parts = append(parts, fmt.Sprint(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, y := range years[1:] {
		if y == prev+1 {
			prev = y
			continue
		}
		flush()
		start, prev = y, y
	}
	flush()
	return strings.Join(parts, ", ")
}

// EnrichOutput is the result of the enrich command
type EnrichOutput struct {
	RunAt       time.Time            `json:"run_at"`
	Imported    int                  `json:"imported"`
	Added       int                  `json:"added"`
	Changed     int                  `json:"changed"`
	Processed   int                  `json:"processed"`
	Retries     int                  `json:"retries"`
	NeedsReview int                  `json:"needs_review"`
	ByStatus    map[order.Status]int `json:"by_status"`
	Records     []*order.Record      `json:"records"`
	Error       string               `json:"error,omitempty"`
}

func (o *EnrichOutput) writeText(w io.Writer, verbose bool) error {
	if o.Imported > 0 {
		fmt.Fprintf(w, "Imported %d orders: %d new, %d changed.\n", o.Imported, o.Added, o.Changed)
	}
	if o.Processed == 0 {
		fmt.Fprintln(w, "No orders due for lookup.")
		return nil
	}

	for _, rec := range o.Records {
		fmt.Fprintf(w, "%s (%s): %s\n", rec.Order.Number, rec.Status, rec.RunnerName())
		if rec.Result != nil {
			writeMatch(w, "     ", *rec.Result, verbose)
		}
		if verbose {
			for _, m := range rec.Matches {
				writeMatch(w, "     ? ", m, false)
			}
			if rec.LastError != "" {
				fmt.Fprintf(w, "     Error: %s\n", rec.LastError)
			}
		}
	}

	statuses := make([]string, 0, len(o.ByStatus))
	for s := range o.ByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	fmt.Fprintf(w, "\nTotal: %d processed", o.Processed)
	for _, s := range statuses {
		fmt.Fprintf(w, ", %d %s", o.ByStatus[order.Status(s)], s)
	}
	fmt.Fprintln(w)
	if o.NeedsReview > 0 {
		fmt.Fprintf(w, "%d orders need review.\n", o.NeedsReview)
	}
	return nil
}

// RecordOutput is the result of the order and override commands
type RecordOutput struct {
	Record *order.Record `json:"record"`
}

func (o *RecordOutput) writeText(w io.Writer, verbose bool) error {
	rec := o.Record
	fmt.Fprintf(w, "Order %s: %s\n", rec.Order.Number, rec.Status)
	fmt.Fprintf(w, "  Runner: %s\n", rec.RunnerName())
	fmt.Fprintf(w, "  Race: %s\n", rec.RaceName())
	if y := rec.Year(); y != 0 {
		fmt.Fprintf(w, "  Year: %d\n", y)
	}
	if rec.Order.OrderDate != "" {
		fmt.Fprintf(w, "  Ordered: %s\n", rec.Order.OrderDate)
	}
	if !rec.Overrides.Empty() {
		fmt.Fprintln(w, "  Overrides set")
	}
	if rec.Result != nil {
		writeMatch(w, "  ", *rec.Result, verbose)
	}
	for _, m := range rec.Matches {
		writeMatch(w, "  ? ", m, verbose)
	}
	if rec.LastError != "" {
		fmt.Fprintf(w, "  Error: %s\n", rec.LastError)
	}
	if verbose {
		fmt.Fprintf(w, "  Attempts: %d\n", rec.Attempts)
		if !rec.UpdatedAt.IsZero() {
			fmt.Fprintf(w, "  Updated: %s\n", rec.UpdatedAt.Format(time.RFC3339))
		}
	}
	return nil
}
