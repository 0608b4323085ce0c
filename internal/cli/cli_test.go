package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/race-results/internal/dispatch"
	"github.com/pfrederiksen/race-results/internal/order"
	"github.com/pfrederiksen/race-results/internal/platform"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
	"github.com/pfrederiksen/race-results/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAdapter struct {
	platform result.Platform
	rows     []result.CandidateResult
	err      error
}

func (f *fakeAdapter) Platform() result.Platform { return f.platform }

func (f *fakeAdapter) FetchCandidates(ctx context.Context, cfg race.RaceConfig, year int, runnerName string) ([]result.CandidateResult, error) {
	return f.rows, f.err
}

// useAdapters swaps the platform adapters for fakes and isolates config
func useAdapters(t *testing.T, adapters ...platform.Adapter) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("RACE_RESULTS_ENRICH_RATE_PER_SECOND", "0")
	t.Setenv("RACE_RESULTS_ENRICH_INITIAL_BACKOFF", "1ms")
	t.Setenv("RACE_RESULTS_ENRICH_MAX_BACKOFF", "2ms")

	orig := newAdapters
	newAdapters = func(platform.Config) []platform.Adapter { return adapters }
	t.Cleanup(func() { newAdapters = orig })
	return dir
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

var (
	austinRows = &fakeAdapter{
		platform: result.PlatformMyChipTime,
		rows: []result.CandidateResult{
			{Name: "Jennifer Samp", Time: "3:48:22", Place: "1,204", Bib: "512", Platform: result.PlatformMyChipTime},
			{Name: "Jenna Smith", Time: "4:01:10", Place: "1,530", Bib: "513", Platform: result.PlatformMyChipTime},
		},
	}
	chicagoRows = &fakeAdapter{
		platform: result.PlatformMika,
		rows: []result.CandidateResult{
			{Name: "John Doe", Time: "3:10:00", Bib: "1", Platform: result.PlatformMika},
			{Name: "John Doe", Time: "4:20:00", Bib: "2", Platform: result.PlatformMika},
		},
	}
	nycDown = &fakeAdapter{
		platform: result.PlatformNYRR,
		err:      fmt.Errorf("%w: connection refused", platform.ErrNetwork),
	}
)

func TestLookup_Exact(t *testing.T) {
	useAdapters(t, austinRows)

	code, stdout, _ := run(t, "lookup", "--race", "Austin Marathon", "--year", "2026", "--runner", "jennifer samp", "--format", "json")
	require.Equal(t, ExitSuccess, code)

	var out LookupOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, dispatch.StatusExact, out.Status)
	assert.Equal(t, "Ascension Seton Austin Marathon", out.Race)
	assert.Equal(t, 2, out.Scanned)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Jennifer Samp", out.Results[0].Name)
	require.NotNil(t, out.Results[0].FinishTime)
	assert.Equal(t, "3:48:22", out.Results[0].FinishTimeText())
	assert.NotEmpty(t, out.LookupID)
}

func TestLookup_TextOutput(t *testing.T) {
	useAdapters(t, austinRows)

	code, stdout, _ := run(t, "lookup", "--tag", "austin", "--year", "2026", "--runner", "Jennifer Samp", "--verbose")
	require.Equal(t, ExitSuccess, code)

	assert.Contains(t, stdout, "Ascension Seton Austin Marathon 2026 (mychiptime):")
	assert.Contains(t, stdout, "Jennifer Samp  3:48:22  place 1204  bib 512")
	assert.Contains(t, stdout, "Match: exact-name")
	assert.Contains(t, stdout, "2 rows scanned")
}

func TestLookup_ExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "ambiguous needs review",
			args:       []string{"lookup", "--race", "Chicago Marathon", "--year", "2025", "--runner", "John Doe"},
			wantCode:   ExitNeedsReview,
			wantStdout: "2 possible results for John Doe",
		},
		{
			name:       "known id picks one",
			args:       []string{"lookup", "--race", "Chicago Marathon", "--year", "2025", "--runner", "John Doe", "--id", "2"},
			wantCode:   ExitSuccess,
			wantStdout: "John Doe  4:20:00",
		},
		{
			name:       "not found needs review",
			args:       []string{"lookup", "--race", "Austin Marathon", "--year", "2026", "--runner", "Nobody Here"},
			wantCode:   ExitNeedsReview,
			wantStdout: "No result for Nobody Here",
		},
		{
			name:       "near spelling needs review",
			args:       []string{"lookup", "--race", "Austin Marathon", "--year", "2026", "--runner", "Jennifer Sams"},
			wantCode:   ExitNeedsReview,
			wantStdout: "Similar names: Jennifer Samp",
		},
		{
			name:       "unsupported race needs review",
			args:       []string{"lookup", "--race", "Boston Marathon", "--year", "2025", "--runner", "John Doe"},
			wantCode:   ExitNeedsReview,
			wantStdout: "Race not supported: Boston Marathon",
		},
		{
			name:       "platform failure is an error",
			args:       []string{"lookup", "--tag", "nyc", "--year", "2024", "--runner", "John Doe"},
			wantCode:   ExitError,
			wantStdout: "Lookup failed (failed-transient)",
			wantStderr: "Error: lookup failed",
		},
		{
			name:       "race or tag required",
			args:       []string{"lookup", "--year", "2025", "--runner", "John Doe"},
			wantCode:   ExitError,
			wantStderr: "--race or --tag is required",
		},
		{
			name:       "runner flag required",
			args:       []string{"lookup", "--race", "Chicago Marathon", "--year", "2025"},
			wantCode:   ExitError,
			wantStderr: "runner",
		},
		{
			name:       "bad format",
			args:       []string{"lookup", "--race", "Chicago Marathon", "--year", "2025", "--runner", "John Doe", "--format", "xml"},
			wantCode:   ExitError,
			wantStderr: "invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useAdapters(t, austinRows, chicagoRows, nycDown)

			code, stdout, stderr := run(t, tt.args...)
			assert.Equal(t, tt.wantCode, code, "stderr: %s", stderr)
			if tt.wantStdout != "" {
				assert.Contains(t, stdout, tt.wantStdout)
			}
			if tt.wantStderr != "" {
				assert.Contains(t, stderr, tt.wantStderr)
			}
			if tt.wantCode == ExitNeedsReview {
				assert.NotContains(t, stderr, "Error:")
			}
		})
	}
}

func TestRaces(t *testing.T) {
	useAdapters(t)

	code, stdout, _ := run(t, "races", "--format", "json", "--sort", "tag")
	require.Equal(t, ExitSuccess, code)

	var out RacesOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 7, out.Count)
	require.Len(t, out.Races, 7)
	assert.Equal(t, "austin", out.Races[0].Tag)
	for _, r := range out.Races {
		assert.NotEmpty(t, r.NextDate, r.Tag)
		assert.NotEmpty(t, r.Years, r.Tag)
	}

	code, stdout, _ = run(t, "races")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Total: 7 races")

	code, _, stderr := run(t, "races", "--sort", "distance")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "invalid sort")
}

func writeOrders(t *testing.T, dir string, orders []order.Order) string {
	t.Helper()
	data, err := json.Marshal(orders)
	require.NoError(t, err)
	path := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestEnrich_Workflow(t *testing.T) {
	dir := useAdapters(t, austinRows, chicagoRows, nycDown)
	dataDir := filepath.Join(dir, "data")

	path := writeOrders(t, dir, []order.Order{
		{Number: "1001", RunnerName: "Jennifer Samp", RaceName: "Austin Marathon", OrderDate: "2026-02-20"},
		{Number: "1002", RunnerName: "John Doe", RaceName: "Chicago Marathon", OrderDate: "2025-11-01"},
		{Number: "1003", RunnerName: "Alice Runner", RaceName: "Boston Marathon", OrderDate: "2025-05-01"},
	})

	// First run: one exact result, two orders for review
	code, stdout, stderr := run(t, "enrich", "--orders", path, "--data-dir", dataDir, "--workers", "2", "--format", "json")
	require.Equal(t, ExitNeedsReview, code, "stderr: %s", stderr)

	var out EnrichOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 3, out.Imported)
	assert.Equal(t, 3, out.Added)
	assert.Equal(t, 3, out.Processed)
	assert.Equal(t, 2, out.NeedsReview)
	assert.Equal(t, 1, out.ByStatus["exact"])
	assert.Equal(t, 1, out.ByStatus["ambiguous-multiple"])
	assert.Equal(t, 1, out.ByStatus["unsupported-race"])

	store, err := storage.New(dataDir)
	require.NoError(t, err)
	rec, err := store.GetRecord("1001")
	require.NoError(t, err)
	assert.Equal(t, order.Status("exact"), rec.Status)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "512", rec.Result.Bib)

	// Nothing is due until a person acts
	code, stdout, _ = run(t, "enrich", "--data-dir", dataDir)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "No orders due for lookup.")

	// Pick the runner by bib and enter Alice's time by hand
	code, stdout, stderr = run(t, "override", "1002", "--bib", "2", "--data-dir", dataDir)
	require.Equal(t, ExitSuccess, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Order 1002: pending")

	code, _, stderr = run(t, "override", "1003", "--finish-time", "4:05:09", "--data-dir", dataDir)
	require.Equal(t, ExitSuccess, code, "stderr: %s", stderr)

	code, stdout, stderr = run(t, "enrich", "--data-dir", dataDir, "--format", "json")
	require.Equal(t, ExitSuccess, code, "stderr: %s", stderr)

	out = EnrichOutput{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 2, out.Processed)
	assert.Equal(t, 1, out.ByStatus["exact"])
	assert.Equal(t, 1, out.ByStatus[order.StatusManual])

	rec, err = store.GetRecord("1002")
	require.NoError(t, err)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "4:20:00", rec.Result.FinishTimeText())

	code, stdout, _ = run(t, "order", "1003", "--data-dir", dataDir)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Order 1003: manual")
	assert.Contains(t, stdout, "4:05:09")
}

func TestEnrich_TransientFailureIsRetried(t *testing.T) {
	dir := useAdapters(t, nycDown)
	dataDir := filepath.Join(dir, "data")
	t.Setenv("RACE_RESULTS_ENRICH_MAX_ATTEMPTS", "2")

	path := writeOrders(t, dir, []order.Order{
		{Number: "7", RunnerName: "John Doe", RaceName: "NYC Marathon", OrderDate: "2025-01-10"},
	})

	code, stdout, _ := run(t, "enrich", "--orders", path, "--data-dir", dataDir, "--format", "json")
	require.Equal(t, ExitSuccess, code)

	var out EnrichOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 1, out.Retries)
	assert.Equal(t, 1, out.ByStatus["failed-transient"])
	require.Len(t, out.Records, 1)
	assert.Equal(t, 2, out.Records[0].Attempts)
	assert.Contains(t, out.Records[0].LastError, "connection refused")
}

func TestOverride_Validation(t *testing.T) {
	dir := useAdapters(t)
	dataDir := filepath.Join(dir, "data")

	store, err := storage.New(dataDir)
	require.NoError(t, err)
	book := order.NewBook()
	order.Merge(book, []order.Order{{Number: "1", RunnerName: "A B", RaceName: "Chicago Marathon"}}, fixedNow)
	require.NoError(t, store.SaveBook(book))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no fields", []string{"override", "1"}, "nothing to override"},
		{"unknown order", []string{"override", "99", "--bib", "3"}, "order not found: 99"},
		{"bad time", []string{"override", "1", "--finish-time", "fast"}, "invalid finish time"},
		{"bad year", []string{"override", "1", "--year", "-4"}, "invalid year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(t, append(tt.args, "--data-dir", dataDir)...)
			assert.Equal(t, ExitError, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestOrder_NotFound(t *testing.T) {
	dir := useAdapters(t)

	code, _, stderr := run(t, "order", "404", "--data-dir", filepath.Join(dir, "data"))
	assert.Equal(t, ExitError, code)
	assert.True(t, strings.HasPrefix(stderr, "Error: order not found: 404"), stderr)
}

func TestRaces_Calendar(t *testing.T) {
	useAdapters(t)

	code, stdout, stderr := run(t, "races", "--format", "ics")
	require.Equal(t, ExitSuccess, code, "stderr: %s", stderr)

	assert.True(t, strings.HasPrefix(stdout, "BEGIN:VCALENDAR\r\n"))
	assert.Equal(t, 7, strings.Count(stdout, "BEGIN:VEVENT"))
	assert.Contains(t, stdout, "SUMMARY:TCS New York City Marathon")
	assert.Contains(t, stdout, "DESCRIPTION:Results on nyrr")
}
