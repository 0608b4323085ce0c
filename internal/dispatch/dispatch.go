// Package dispatch runs a single result lookup: it resolves the race, fetches
// rows from the race's platform and matches them against the runner.
//
// A Dispatcher holds no per-lookup state and never retries. Callers decide
// what to do with a Status; StatusFailedTransient is the only one worth
// retrying.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pfrederiksen/race-results/internal/logger"
	"github.com/pfrederiksen/race-results/internal/platform"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
	"github.com/pfrederiksen/race-results/internal/runner"
)

// Status is the terminal outcome of a lookup
type Status string

const (
	StatusExact           Status = "exact"
	StatusAmbiguous       Status = "ambiguous-multiple"
	StatusNotFound        Status = "not-found"
	StatusUnsupportedRace Status = "unsupported-race"
	StatusFailedTransient Status = "failed-transient"
	StatusFailedPermanent Status = "failed-permanent"
)

// Retryable reports whether repeating the lookup may give a different answer
func (s Status) Retryable() bool {
	return s == StatusFailedTransient
}

// NeedsReview reports whether a person has to settle the outcome
func (s Status) NeedsReview() bool {
	switch s {
	case StatusAmbiguous, StatusNotFound, StatusUnsupportedRace:
		return true
	}
	return false
}

// Failed reports whether the lookup ended in an error
func (s Status) Failed() bool {
	return s == StatusFailedTransient || s == StatusFailedPermanent
}

// State is a step of a lookup, reported in log lines
type State string

const (
	StateResolvingRace State = "resolving-race"
	StateFetching      State = "fetching"
	StateMatching      State = "matching"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// ErrNoAdapter is returned when a race's platform has no registered adapter
var ErrNoAdapter = errors.New("no adapter for platform")

// RunnerQuery is one lookup request
type RunnerQuery struct {
	Runner   string
	Year     int
	RaceName string
	Tag      string
	// KnownID is a bib, profile id or result id the caller already has. It
	// narrows several matching rows down to the one carrying that id.
	KnownID string
}

// Outcome is the answer to a RunnerQuery
type Outcome struct {
	LookupID    string
	Status      Status
	Race        race.RaceConfig
	Results     []result.MatchResult
	Candidates  int
	// Suggestions lists near spellings of the runner seen in the rows of a
	// not-found lookup
	Suggestions []string
	Err         error
	Duration    time.Duration
}

// Dispatcher routes lookups to platform adapters
type Dispatcher struct {
	registry *race.Registry
	adapters map[result.Platform]platform.Adapter
	matcher  runner.Matcher
	log      *logger.Logger
	metrics  *logger.Metrics
	newID    func() string
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithMatcher replaces the default name matcher
func WithMatcher(m runner.Matcher) Option {
	return func(d *Dispatcher) { d.matcher = m }
}

// WithLogger sets the logger used for lookup records
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics sets the metrics tracker
func WithMetrics(m *logger.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a dispatcher over a registry and one adapter per platform. A
// later adapter for the same platform replaces an earlier one.
func New(registry *race.Registry, adapters []platform.Adapter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		adapters: make(map[result.Platform]platform.Adapter, len(adapters)),
		matcher:  runner.Default,
		log:      logger.Default(),
		metrics:  logger.DefaultMetrics(),
		newID:    uuid.NewString,
	}
	for _, a := range adapters {
		d.adapters[a.Platform()] = a
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Lookup resolves, fetches and matches one query
func (d *Dispatcher) Lookup(ctx context.Context, q RunnerQuery) Outcome {
	start := time.Now()
	out := Outcome{LookupID: d.newID()}
	fields := logger.Fields{
		"lookup_id": out.LookupID,
		"runner":    q.Runner,
		"race_name": q.RaceName,
		"tag":       q.Tag,
		"year":      q.Year,
	}

	d.log.Debug("Lookup started", withState(fields, StateResolvingRace))
	cfg, ok := d.registry.Find(q.RaceName, q.Tag)
	if !ok {
		out.Status = StatusUnsupportedRace
		return d.finish(out, fields, start)
	}
	out.Race = cfg
	fields["race"] = cfg.Tag
	fields["platform"] = string(cfg.Platform)

	name, ok := runner.Clean(q.Runner)
	if !ok {
		out.Status = StatusNotFound
		return d.finish(out, fields, start)
	}

	adapter, ok := d.adapters[cfg.Platform]
	if !ok {
		out.Status = StatusFailedPermanent
		out.Err = fmt.Errorf("%w: %s", ErrNoAdapter, cfg.Platform)
		return d.finish(out, fields, start)
	}

	d.log.Debug("Fetching candidates", withState(fields, StateFetching))
	fetchStart := time.Now()
	candidates, err := adapter.FetchCandidates(ctx, cfg, q.Year, name)
	d.metrics.RecordTiming("platform."+string(cfg.Platform)+".fetch", time.Since(fetchStart))
	if err != nil {
		out.Status = classify(err)
		out.Err = err
		return d.finish(out, fields, start)
	}
	out.Candidates = len(candidates)

	d.log.Debug("Matching candidates", withState(fields, StateMatching))
	matches := narrow(d.matcher.Match(name, candidates), q.KnownID)
	out.Results = matches
	switch {
	case len(matches) == 0:
		out.Status = StatusNotFound
		out.Suggestions = d.matcher.Suggest(name, candidates)
	case len(matches) == 1:
		out.Status = StatusExact
	default:
		out.Status = StatusAmbiguous
	}

	return d.finish(out, fields, start)
}

// classify maps an adapter error onto a failure status
func classify(err error) Status {
	switch {
	case errors.Is(err, platform.ErrNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return StatusFailedTransient
	default:
		return StatusFailedPermanent
	}
}

// narrow keeps the match carrying id as its source id or bib. When id is
// empty or matches nothing the input is returned unchanged.
func narrow(matches []result.MatchResult, id string) []result.MatchResult {
	if id == "" || len(matches) < 2 {
		return matches
	}

	var hits []result.MatchResult
	for _, m := range matches {
		if m.SourceID == id || m.Bib == id {
			hits = append(hits, m)
		}
	}
	if len(hits) == 0 {
		return matches
	}
	if len(hits) == 1 {
		hits[0].Confidence = result.ConfidenceExact
	}
	return hits
}

func (d *Dispatcher) finish(out Outcome, fields logger.Fields, start time.Time) Outcome {
	out.Duration = time.Since(start)
	fields["status"] = string(out.Status)
	fields["candidates"] = out.Candidates
	fields["matches"] = len(out.Results)
	fields["duration_ms"] = out.Duration.Milliseconds()

	switch {
	case errors.Is(out.Err, platform.ErrParse):
		fields["kind"] = "parse"
		d.log.Error("Platform response did not parse", withState(fields, StateFailed), out.Err)
	case errors.Is(out.Err, platform.ErrNotSupportedForYear):
		fields["kind"] = "unsupported-year"
		d.log.Warn("Race year not configured", withState(fields, StateFailed))
	case out.Status == StatusFailedTransient:
		fields["kind"] = "network"
		fields["error"] = out.Err.Error()
		d.log.Warn("Platform unreachable", withState(fields, StateFailed))
	case out.Err != nil:
		fields["kind"] = "unknown"
		d.log.Error("Lookup failed", withState(fields, StateFailed), out.Err)
	default:
		d.log.Info("Lookup finished", withState(fields, StateDone))
	}

	d.metrics.IncrCounter("lookup." + string(out.Status))
	d.metrics.RecordTiming("lookup.duration", out.Duration)
	return out
}

func withState(fields logger.Fields, s State) logger.Fields {
	fields["state"] = string(s)
	return fields
}
