package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/race-results/internal/logger"
	"github.com/pfrederiksen/race-results/internal/platform"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	platform result.Platform
	rows     []result.CandidateResult
	err      error

	calls    int
	lastName string
	lastYear int
}

func (f *fakeAdapter) Platform() result.Platform {
	return f.platform
}

func (f *fakeAdapter) FetchCandidates(_ context.Context, _ race.RaceConfig, year int, runnerName string) ([]result.CandidateResult, error) {
	f.calls++
	f.lastName = runnerName
	f.lastYear = year
	return f.rows, f.err
}

func newDispatcher(t *testing.T, adapters ...platform.Adapter) (*Dispatcher, *bytes.Buffer, *logger.Metrics) {
	t.Helper()
	reg, err := race.DefaultRegistry()
	require.NoError(t, err)

	var buf bytes.Buffer
	metrics := logger.NewMetrics()
	d := New(reg, adapters,
		WithLogger(logger.New(logger.LevelInfo, &buf)),
		WithMetrics(metrics),
	)
	return d, &buf, metrics
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func row(name, t, place, bib, id string) result.CandidateResult {
	return result.CandidateResult{Name: name, Time: t, Place: place, Bib: bib, SourceID: id, Platform: result.PlatformMyChipTime}
}

func TestLookup_AustinExact(t *testing.T) {
	adapter := &fakeAdapter{
		platform: result.PlatformMyChipTime,
		rows: []result.CandidateResult{
			row("Jennifer Samp", "3:48:22", "1,204", "4411", "883201"),
			row("Jenny Sampson", "4:02:10", "1,390", "4412", "883202"),
		},
	}
	d, buf, metrics := newDispatcher(t, adapter)

	out := d.Lookup(context.Background(), RunnerQuery{
		Runner:   "Jennifer Samp",
		Year:     2026,
		RaceName: "Ascension Seton Austin Marathon",
	})

	assert.Equal(t, StatusExact, out.Status)
	assert.NoError(t, out.Err)
	assert.Equal(t, "austin", out.Race.Tag)
	assert.Equal(t, 2, out.Candidates)
	assert.NotEmpty(t, out.LookupID)
	assert.Equal(t, 1, adapter.calls)
	assert.Equal(t, 2026, adapter.lastYear)

	require.Len(t, out.Results, 1)
	got := out.Results[0]
	require.NotNil(t, got.FinishTime)
	assert.Equal(t, 3*time.Hour+48*time.Minute+22*time.Second, *got.FinishTime)
	require.NotNil(t, got.Place)
	assert.Equal(t, 1204, *got.Place)
	assert.Equal(t, result.ConfidenceExact, got.Confidence)
	assert.Equal(t, result.KindExactName, got.Kind)

	entry := lastLogLine(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	fields := entry["fields"].(map[string]interface{})
	assert.Equal(t, out.LookupID, fields["lookup_id"])
	assert.Equal(t, "exact", fields["status"])
	assert.Equal(t, "done", fields["state"])

	counters := metrics.GetSnapshot()["counters"].(map[string]int64)
	assert.Equal(t, int64(1), counters["lookup.exact"])
}

func TestLookup_UnsupportedRace(t *testing.T) {
	adapter := &fakeAdapter{platform: result.PlatformMyChipTime}
	d, _, _ := newDispatcher(t, adapter)

	out := d.Lookup(context.Background(), RunnerQuery{Runner: "Jennifer Samp", Year: 2025, RaceName: "Boston Marathon"})

	assert.Equal(t, StatusUnsupportedRace, out.Status)
	assert.True(t, out.Status.NeedsReview())
	assert.Empty(t, out.Results)
	assert.Zero(t, adapter.calls)
}

func TestLookup_InvalidRunnerName(t *testing.T) {
	for _, name := range []string{"no time", "NO TIME", "   ", ""} {
		t.Run(fmt.Sprintf("%q", name), func(t *testing.T) {
			adapter := &fakeAdapter{
				platform: result.PlatformMyChipTime,
				rows:     []result.CandidateResult{row("No Time", "3:00:00", "1", "1", "1")},
			}
			d, _, _ := newDispatcher(t, adapter)

			out := d.Lookup(context.Background(), RunnerQuery{Runner: name, Year: 2026, Tag: "austin"})

			assert.Equal(t, StatusNotFound, out.Status)
			assert.Empty(t, out.Results)
			assert.Zero(t, adapter.calls)
		})
	}
}

func TestLookup_CleansRunnerBeforeFetch(t *testing.T) {
	adapter := &fakeAdapter{
		platform: result.PlatformMyChipTime,
		rows:     []result.CandidateResult{row("John Doe", "4:10:00", "900", "77", "77")},
	}
	d, _, _ := newDispatcher(t, adapter)

	out := d.Lookup(context.Background(), RunnerQuery{Runner: "  John Doe No Time ", Year: 2025, Tag: "austin"})

	assert.Equal(t, StatusExact, out.Status)
	assert.Equal(t, "John Doe", adapter.lastName)
}

func TestLookup_Ambiguous(t *testing.T) {
	adapter := &fakeAdapter{
		platform: result.PlatformMyChipTime,
		rows: []result.CandidateResult{
			row("Michael Brown", "3:55:00", "2010", "501", "a1"),
			row("michael  BROWN", "4:20:00", "3550", "902", "a2"),
		},
	}
	d, _, metrics := newDispatcher(t, adapter)

	out := d.Lookup(context.Background(), RunnerQuery{Runner: "Michael Brown", Year: 2025, Tag: "austin"})

	assert.Equal(t, StatusAmbiguous, out.Status)
	require.Len(t, out.Results, 2)
	for _, r := range out.Results {
		assert.Equal(t, result.ConfidenceAmbiguous, r.Confidence)
	}

	counters := metrics.GetSnapshot()["counters"].(map[string]int64)
	assert.Equal(t, int64(1), counters["lookup.ambiguous-multiple"])
}

func TestLookup_KnownIDNarrows(t *testing.T) {
	rows := []result.CandidateResult{
		row("Michael Brown", "3:55:00", "2010", "501", "a1"),
		row("Michael Brown", "4:20:00", "3550", "902", "a2"),
	}

	tests := []struct {
		name       string
		knownID    string
		wantStatus Status
		wantLen    int
	}{
		{"by bib", "902", StatusExact, 1},
		{"by source id", "a1", StatusExact, 1},
		{"unknown id keeps all", "zzz", StatusAmbiguous, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &fakeAdapter{platform: result.PlatformMyChipTime, rows: rows}
			d, _, _ := newDispatcher(t, adapter)

			out := d.Lookup(context.Background(), RunnerQuery{Runner: "Michael Brown", Year: 2025, Tag: "austin", KnownID: tt.knownID})

			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Len(t, out.Results, tt.wantLen)
			if tt.wantLen == 1 {
				assert.Equal(t, result.ConfidenceExact, out.Results[0].Confidence)
			}
		})
	}
}

func TestLookup_NotFound(t *testing.T) {
	adapter := &fakeAdapter{
		platform: result.PlatformMyChipTime,
		rows:     []result.CandidateResult{row("Someone Else", "3:00:00", "1", "1", "1")},
	}
	d, _, _ := newDispatcher(t, adapter)

	out := d.Lookup(context.Background(), RunnerQuery{Runner: "Jennifer Samp", Year: 2025, Tag: "austin"})
	assert.Equal(t, StatusNotFound, out.Status)
	assert.Equal(t, 1, out.Candidates)
	assert.Empty(t, out.Suggestions)
}

func TestLookup_NearSpellingIsNotFound(t *testing.T) {
	adapter := &fakeAdapter{
		platform: result.PlatformMyChipTime,
		rows: []result.CandidateResult{
			row("Mary Jones", "3:00:00", "1", "1", "1"),
			row("Bob Smith", "3:10:00", "2", "2", "2"),
		},
	}
	d, _, _ := newDispatcher(t, adapter)

	out := d.Lookup(context.Background(), RunnerQuery{Runner: "Mark Jones", Year: 2025, Tag: "austin"})
	assert.Equal(t, StatusNotFound, out.Status)
	assert.Empty(t, out.Results)
	assert.Equal(t, []string{"Mary Jones"}, out.Suggestions)
}

func TestLookup_AdapterErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus Status
		wantLevel  string
		wantKind   string
	}{
		{"network", fmt.Errorf("%w: timeout", platform.ErrNetwork), StatusFailedTransient, "WARN", "network"},
		{"deadline", context.DeadlineExceeded, StatusFailedTransient, "WARN", "network"},
		{"parse", fmt.Errorf("%w: no table", platform.ErrParse), StatusFailedPermanent, "ERROR", "parse"},
		{"year", fmt.Errorf("%w: austin 2019", platform.ErrNotSupportedForYear), StatusFailedPermanent, "WARN", "unsupported-year"},
		{"other", fmt.Errorf("boom"), StatusFailedPermanent, "ERROR", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &fakeAdapter{platform: result.PlatformMyChipTime, err: tt.err}
			d, buf, _ := newDispatcher(t, adapter)

			out := d.Lookup(context.Background(), RunnerQuery{Runner: "Jennifer Samp", Year: 2025, Tag: "austin"})

			assert.Equal(t, tt.wantStatus, out.Status)
			assert.ErrorIs(t, out.Err, tt.err)
			assert.Equal(t, tt.wantStatus == StatusFailedTransient, out.Status.Retryable())
			assert.True(t, out.Status.Failed())

			entry := lastLogLine(t, buf)
			assert.Equal(t, tt.wantLevel, entry["level"])
			fields := entry["fields"].(map[string]interface{})
			assert.Equal(t, tt.wantKind, fields["kind"])
			assert.Equal(t, "failed", fields["state"])
		})
	}
}

func TestLookup_MissingAdapter(t *testing.T) {
	d, _, _ := newDispatcher(t)

	out := d.Lookup(context.Background(), RunnerQuery{Runner: "Jennifer Samp", Year: 2025, Tag: "nyc"})

	assert.Equal(t, StatusFailedPermanent, out.Status)
	assert.ErrorIs(t, out.Err, ErrNoAdapter)
}

func TestStatus_Predicates(t *testing.T) {
	assert.False(t, StatusExact.NeedsReview())
	assert.False(t, StatusExact.Failed())
	assert.True(t, StatusNotFound.NeedsReview())
	assert.True(t, StatusAmbiguous.NeedsReview())
	assert.False(t, StatusFailedPermanent.Retryable())
	assert.True(t, StatusFailedTransient.Retryable())
}
