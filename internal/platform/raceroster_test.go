package platform

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raceRosterRace() race.RaceConfig {
	return testRace(result.PlatformRaceRoster, map[int]race.Identifier{
		2026: {EventID: "97310", SubEvents: []race.SubEvent{{Type: race.EventMarathon, ID: "1"}, {Type: race.EventHalf, ID: "2"}}},
	})
}

func TestRaceRoster_FetchCandidates(t *testing.T) {
	client, mock := mockClient(t)

	mock.RegisterResponder("GET", "https://results.raceroster.com/v2/api/result-events/97310/sub-events/1/results",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Nguyen", req.URL.Query().Get("filter_search"))
			return httpmock.NewStringResponse(200, `{
				"data":[
					{"id":501,"name":"Linh Nguyen","bib":"2210","chipTime":"3:12:44","gunTime":"3:13:30","overallPlace":880,"divisionPlace":41},
					{"id":502,"name":"Linh Nguyen","bib":2290,"chipTime":"","gunTime":"4:40:02","overallPlace":"4410","divisionPlace":""},
					{"id":503,"name":"Linh Nguyen","bib":false,"chipTime":"3:59:00"}
				],
				"meta":{"data":{"total":3}}
			}`), nil
		})
	mock.RegisterResponder("GET", "https://results.raceroster.com/v2/api/result-events/97310/sub-events/2/results",
		httpmock.NewStringResponder(200, `{"data":[],"meta":{"data":{"total":0}}}`))

	got, err := NewRaceRoster(client).FetchCandidates(context.Background(), raceRosterRace(), 2026, "Linh Nguyen")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "3:12:44", got[0].Time)
	assert.Equal(t, "880", got[0].Place)
	assert.Equal(t, "41", got[0].DivPlace)
	assert.Equal(t, "501", got[0].SourceID)
	assert.Equal(t, string(race.EventMarathon), got[0].EventType)
	assert.Equal(t, "4:40:02", got[1].Time, "gun time fills a missing chip time")
	assert.Equal(t, "2290", got[1].Bib)

	// The runner was found in the first sub-event, so the second is never queried
	info := mock.GetCallCountInfo()
	assert.Zero(t, info["GET https://results.raceroster.com/v2/api/result-events/97310/sub-events/2/results"])
}

func TestRaceRoster_MissingData(t *testing.T) {
	client, mock := mockClient(t)
	mock.RegisterResponder("GET", `=~^https://results\.raceroster\.com/v2/api/result-events/97310/`,
		httpmock.NewStringResponder(200, `{"error":"not found"}`))

	_, err := NewRaceRoster(client).FetchCandidates(context.Background(), raceRosterRace(), 2026, "Linh Nguyen")
	assert.ErrorIs(t, err, ErrParse)
}
