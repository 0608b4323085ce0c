package platform

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
	"github.com/pfrederiksen/race-results/internal/runner"
)

const (
	DefaultHTTPTimeout     = 20 * time.Second
	DefaultBrowserTimeout  = 60 * time.Second
	DefaultBrowserSessions = 2
	UserAgent              = "race-results/1.0 (github.com/pfrederiksen/race-results)"
)

// Adapter fetches raw result rows for one results platform
type Adapter interface {
	Platform() result.Platform
	FetchCandidates(ctx context.Context, cfg race.RaceConfig, year int, runnerName string) ([]result.CandidateResult, error)
}

// Config holds settings shared by the adapters
type Config struct {
	HTTPTimeout     time.Duration
	BrowserTimeout  time.Duration
	BrowserSessions int64
	UserAgent       string
	ChromePath      string
	Headless        bool
	RTRTAppID       string
	RTRTToken       string
}

// DefaultConfig returns adapter settings suitable for production
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:     DefaultHTTPTimeout,
		BrowserTimeout:  DefaultBrowserTimeout,
		BrowserSessions: DefaultBrowserSessions,
		UserAgent:       UserAgent,
		Headless:        true,
	}
}

// NewHTTPClient creates the resty client shared by the HTTP adapters
func NewHTTPClient(cfg Config) *resty.Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = UserAgent
	}

	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "application/json, text/html;q=0.9")
}

// Adapters builds one adapter per supported platform
func Adapters(cfg Config, client *resty.Client, renderer Renderer) []Adapter {
	return []Adapter{
		NewRunSignUp(client),
		NewMika(client),
		NewMyRace(renderer),
		NewNYRR(client),
		NewRaceRoster(client),
		NewMyChipTime(client),
		NewRTRT(client, cfg.RTRTAppID, cfg.RTRTToken),
	}
}

// searchName splits a runner name into first and last name for platform
// search forms. "Samp, Jennifer" is read as last name first.
func searchName(name string) (first, last string, ok bool) {
	cleaned, ok := runner.Clean(name)
	if !ok {
		return "", "", false
	}

	if i := strings.Index(cleaned, ","); i >= 0 {
		last = strings.TrimSpace(cleaned[:i])
		first = strings.TrimSpace(cleaned[i+1:])
		return first, last, last != ""
	}

	parts := strings.Fields(cleaned)
	if len(parts) == 1 {
		return "", parts[0], true
	}
	return parts[0], parts[len(parts)-1], true
}

type subEventFetcher func(ctx context.Context, sub race.SubEvent) ([]result.CandidateResult, error)

// searchSubEvents walks sub-events in declared order and stops at the first
// whose rows include the runner. Rows from different sub-events are never
// merged; when nothing matches the first sub-event's rows are returned.
func searchSubEvents(ctx context.Context, runnerName string, subs []race.SubEvent, fetch subEventFetcher) ([]result.CandidateResult, error) {
	var first []result.CandidateResult

	for i, sub := range subs {
		rows, err := fetch(ctx, sub)
		if err != nil {
			return nil, err
		}

		for j := range rows {
			if rows[j].EventType == "" {
				rows[j].EventType = string(sub.Type)
			}
		}

		if i == 0 {
			first = rows
		}
		if anyMatch(runnerName, rows) {
			return rows, nil
		}
	}

	return first, nil
}

func anyMatch(runnerName string, rows []result.CandidateResult) bool {
	for _, r := range rows {
		if runner.Matches(runnerName, r.Name) {
			return true
		}
	}
	return false
}

// keepRow reports whether a row has enough to be matched and reported
func keepRow(c result.CandidateResult) bool {
	_, ok := runner.Clean(c.Name)
	return ok && strings.TrimSpace(c.Time) != ""
}
