package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const myChipTimeMarathon = `
<html><body>
<table class="results">
  <thead>
    <tr><th>Place</th><th>Bib</th><th>Name</th><th>Div Place</th><th>Gun Time</th><th>Chip Time</th></tr>
  </thead>
  <tbody>
    <tr><td>1,204</td><td>4411</td><td><a href="individualResults.php?eID=19011&pID=883201">Jennifer Samp</a></td><td>88</td><td>3:50:02</td><td>3:48:22</td></tr>
    <tr><td>2,311</td><td>4412</td><td><a href="individualResults.php?eID=19011&pID=883202">Jenny Samp (USA)</a></td><td>120</td><td>4:20:00</td><td></td></tr>
    <tr><td></td><td>4413</td><td></td><td></td><td></td><td>4:00:00</td></tr>
  </tbody>
</table>
</body></html>`

func TestMyChipTime_FetchCandidates(t *testing.T) {
	var queried []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "race-results") {
			t.Errorf("User-Agent = %q, should contain 'race-results'", ua)
		}
		assert.Equal(t, "/searchResultGen.php", r.URL.Path)
		assert.Equal(t, "Samp", r.URL.Query().Get("lName"))
		assert.Equal(t, "Jennifer", r.URL.Query().Get("fName"))

		eID := r.URL.Query().Get("eID")
		queried = append(queried, eID)
		if eID == "19011" {
			w.Write([]byte(myChipTimeMarathon))
			return
		}
		w.Write([]byte(`<p>No results found</p>`))
	}))
	defer server.Close()

	m := NewMyChipTime(NewHTTPClient(DefaultConfig()))
	m.url = server.URL

	cfg := testRace(result.PlatformMyChipTime, map[int]race.Identifier{
		2026: {EventID: "19011", SubEvents: []race.SubEvent{{Type: race.EventMarathon, ID: "19011"}, {Type: race.EventHalf, ID: "19012"}}},
	})

	got, err := m.FetchCandidates(context.Background(), cfg, 2026, "Jennifer Samp")
	require.NoError(t, err)
	assert.Equal(t, []string{"19011"}, queried)

	require.Len(t, got, 2)
	assert.Equal(t, "Jennifer Samp", got[0].Name)
	assert.Equal(t, "3:48:22", got[0].Time)
	assert.Equal(t, "1,204", got[0].Place)
	assert.Equal(t, "88", got[0].DivPlace)
	assert.Equal(t, "4411", got[0].Bib)
	assert.Equal(t, "883201", got[0].SourceID)
	assert.Equal(t, server.URL+"/individualResults.php?eID=19011&pID=883201", got[0].SourceURL)
	assert.Equal(t, string(race.EventMarathon), got[0].EventType)

	assert.Equal(t, "Jenny Samp", got[1].Name, "country suffix is stripped")
	assert.Equal(t, "4:20:00", got[1].Time, "gun time fills a missing chip time")
}

func TestMyChipTime_Responses(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		statusCode int
		wantErr    error
		wantRows   int
	}{
		{"no results text", `<div class="alert">No results found for this search.</div>`, 200, nil, 0},
		{"table without matches", `<table><tr><th>Name</th><th>Time</th></tr></table>`, 200, nil, 0},
		{"layout changed", `<div class="grid">Jennifer Samp 3:48:22</div>`, 200, ErrParse, 0},
		{"header row in td cells", `<table><tr><td>Name</td><td>Time</td></tr><tr><td>Jennifer Samp</td><td>3:48:22</td></tr></table>`, 200, nil, 1},
		{"server error", ``, 502, ErrNetwork, 0},
		{"not found", ``, 404, ErrParse, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			m := NewMyChipTime(NewHTTPClient(DefaultConfig()))
			m.url = server.URL
			cfg := testRace(result.PlatformMyChipTime, map[int]race.Identifier{2026: {EventID: "19011"}})

			got, err := m.FetchCandidates(context.Background(), cfg, 2026, "Jennifer Samp")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantRows)
		})
	}
}
