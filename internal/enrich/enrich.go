// Package enrich fills order records with race results.
//
// A Pool runs lookups for many orders at once. It bounds concurrency with an
// errgroup, paces lookup starts with a rate limiter and retries lookups that
// failed for transient reasons with exponential backoff. Every other outcome
// is final for the run and is written to the record as-is.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pfrederiksen/race-results/internal/dispatch"
	"github.com/pfrederiksen/race-results/internal/logger"
	"github.com/pfrederiksen/race-results/internal/order"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers        = 4
	DefaultRatePerSecond  = 2.0
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Looker runs one lookup. *dispatch.Dispatcher implements it.
type Looker interface {
	Lookup(ctx context.Context, q dispatch.RunnerQuery) dispatch.Outcome
}

// Config tunes a Pool
type Config struct {
	Workers        int
	RatePerSecond  float64 // zero or negative disables pacing
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the settings used by the enrich command
func DefaultConfig() Config {
	return Config{
		Workers:        DefaultWorkers,
		RatePerSecond:  DefaultRatePerSecond,
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// Summary counts the outcomes of one run
type Summary struct {
	Processed int
	Retries   int
	ByStatus  map[order.Status]int
}

// NeedsReview reports how many records ended in a state a person must settle
func (s Summary) NeedsReview() int {
	n := 0
	for status, count := range s.ByStatus {
		if dispatch.Status(status).NeedsReview() {
			n += count
		}
	}
	return n
}

// Pool looks up results for order records
type Pool struct {
	lookup   Looker
	registry *race.Registry
	cfg      Config
	limiter  *rate.Limiter
	log      *logger.Logger
	metrics  *logger.Metrics
	now      func() time.Time
}

// NewPool creates a pool. The registry is only used to derive race years
// from order dates.
func NewPool(lookup Looker, registry *race.Registry, cfg Config) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = cfg.Workers
	}

	return &Pool{
		lookup:   lookup,
		registry: registry,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		log:      logger.Default(),
		metrics:  logger.DefaultMetrics(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run processes records concurrently and updates them in place. It returns
// early with the context error when ctx is cancelled; records not yet
// started are left untouched.
func (p *Pool) Run(ctx context.Context, records []*order.Record) (Summary, error) {
	summary := Summary{ByStatus: make(map[order.Status]int)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	remaining := len(records)
	p.metrics.SetGauge("enrich.pending", float64(remaining))

	for _, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			retries := p.process(gctx, rec)

			mu.Lock()
			summary.Processed++
			summary.Retries += retries
			summary.ByStatus[rec.Status]++
			remaining--
			p.metrics.SetGauge("enrich.pending", float64(remaining))
			mu.Unlock()

			p.metrics.IncrCounter("enrich.status." + string(rec.Status))
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("enrichment interrupted: %w", err)
	}
	return summary, nil
}

// process settles one record and returns the number of retries it took
func (p *Pool) process(ctx context.Context, rec *order.Record) int {
	fields := logger.Fields{"order": rec.Order.Number}

	if raw := rec.Overrides.FinishTime; raw != "" {
		applyManual(rec, p.now())
		p.log.Info("Applied manual finish time", fields)
		return 0
	}

	q, err := p.query(rec)
	if err != nil {
		rec.Status = order.Status(dispatch.StatusFailedPermanent)
		rec.LastError = err.Error()
		rec.UpdatedAt = p.now()
		p.log.Warn("Order cannot be looked up", logger.Fields{"order": rec.Order.Number, "error": err.Error()})
		return 0
	}

	var (
		out     dispatch.Outcome
		retries = -1
	)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.cfg.InitialBackoff
	policy.MaxInterval = p.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	operation := func() error {
		retries++
		if err := p.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		rec.Attempts++
		out = p.lookup.Lookup(ctx, q)
		if out.Status.Retryable() {
			return errTransient
		}
		return nil
	}

	err = backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.cfg.MaxAttempts-1)), ctx))
	if retries > 0 {
		p.metrics.IncrCounter("enrich.retry")
	}

	if out.Status == "" {
		// Cancelled before the first lookup ran
		rec.Status = order.Status(dispatch.StatusFailedTransient)
		rec.LastError = err.Error()
		rec.UpdatedAt = p.now()
		return retries
	}

	apply(rec, out, p.now())
	fields["lookup_id"] = out.LookupID
	fields["status"] = string(out.Status)
	fields["attempts"] = rec.Attempts
	p.log.Info("Order enriched", fields)
	return retries
}

var errTransient = errors.New("transient lookup failure")

// query builds the lookup for a record. Overrides win over imported fields;
// without an explicit year the race year is derived from the order date.
func (p *Pool) query(rec *order.Record) (dispatch.RunnerQuery, error) {
	q := dispatch.RunnerQuery{
		Runner:   rec.RunnerName(),
		RaceName: rec.RaceName(),
		Year:     rec.Year(),
		KnownID:  rec.Overrides.Bib,
	}
	if q.Year != 0 {
		return q, nil
	}

	cfg, ok := p.registry.Find(q.RaceName, "")
	if !ok {
		// The dispatcher reports the race as unsupported
		return q, nil
	}

	date, err := order.ParseDate(rec.Order.OrderDate)
	if err != nil {
		return q, fmt.Errorf("deriving race year: %w", err)
	}
	q.Year = race.YearFor(cfg, date)
	return q, nil
}

func apply(rec *order.Record, out dispatch.Outcome, now time.Time) {
	rec.Status = order.Status(out.Status)
	rec.Result = nil
	rec.Matches = nil
	rec.LastError = ""
	rec.UpdatedAt = now

	switch out.Status {
	case dispatch.StatusExact:
		r := out.Results[0]
		rec.Result = &r
	case dispatch.StatusAmbiguous:
		rec.Matches = out.Results
	}
	if out.Err != nil {
		rec.LastError = out.Err.Error()
	}
}

// applyManual records a hand-entered finish time as the result
func applyManual(rec *order.Record, now time.Time) {
	raw := rec.Overrides.FinishTime
	r := result.MatchResult{
		Name:       rec.RunnerName(),
		RawTime:    raw,
		Bib:        rec.Overrides.Bib,
		Confidence: result.ConfidenceExact,
	}
	if d, ok := result.ParseDuration(raw); ok {
		r.FinishTime = &d
	}

	rec.Status = order.StatusManual
	rec.Result = &r
	rec.Matches = nil
	rec.LastError = ""
	rec.UpdatedAt = now
}
