package platform

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
)

const (
	RaceRosterURL      = "https://results.raceroster.com"
	raceRosterPageSize = 100
)

// RaceRoster queries the RaceRoster results API. Events publish each
// distance as its own sub-event.
type RaceRoster struct {
	client *resty.Client
	url    string
}

type raceRosterResponse struct {
	Data *jsonRows[struct {
		ID            flexString `json:"id"`
		Name          string     `json:"name"`
		Bib           flexString `json:"bib"`
		ChipTime      string     `json:"chipTime"`
		GunTime       string     `json:"gunTime"`
		OverallPlace  flexString `json:"overallPlace"`
		DivisionPlace flexString `json:"divisionPlace"`
	}] `json:"data"`
	Meta struct {
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	} `json:"meta"`
}

// NewRaceRoster creates a RaceRoster adapter
func NewRaceRoster(client *resty.Client) *RaceRoster {
	return &RaceRoster{client: client, url: RaceRosterURL}
}

func (r *RaceRoster) Platform() result.Platform {
	return result.PlatformRaceRoster
}

// FetchCandidates searches each sub-event in declared order
func (r *RaceRoster) FetchCandidates(ctx context.Context, cfg race.RaceConfig, year int, runnerName string) ([]result.CandidateResult, error) {
	id, err := identifierFor(cfg, year)
	if err != nil {
		return nil, err
	}
	if id.EventID == "" {
		return nil, missingID(cfg, year, "event id")
	}
	if len(id.SubEvents) == 0 {
		return nil, missingID(cfg, year, "sub-event ids")
	}

	_, last, ok := searchName(runnerName)
	if !ok {
		return nil, nil
	}

	return searchSubEvents(ctx, runnerName, id.SubEvents, func(ctx context.Context, sub race.SubEvent) ([]result.CandidateResult, error) {
		return r.search(ctx, id.EventID, sub.ID, last)
	})
}

func (r *RaceRoster) search(ctx context.Context, eventID, subEventID, term string) ([]result.CandidateResult, error) {
	endpoint := fmt.Sprintf("%s/v2/api/result-events/%s/sub-events/%s/results", r.url, eventID, subEventID)
	candidates := make([]result.CandidateResult, 0)

	for page := 0; page < maxPages; page++ {
		resp, err := r.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"filter_search": term,
				"start":         strconv.Itoa(page * raceRosterPageSize),
				"limit":         strconv.Itoa(raceRosterPageSize),
			}).
			Get(endpoint)
		if err := checkResponse(resp, err); err != nil {
			return nil, err
		}

		var body raceRosterResponse
		if err := decodeJSON(resp, &body); err != nil {
			return nil, err
		}
		if body.Data == nil {
			return nil, parseErrorf("%s: missing data", endpoint)
		}

		for _, row := range *body.Data {
			c := result.CandidateResult{
				Name:      row.Name,
				Time:      row.ChipTime,
				Place:     row.OverallPlace.String(),
				DivPlace:  row.DivisionPlace.String(),
				Bib:       row.Bib.String(),
				SourceID:  row.ID.String(),
				SourceURL: fmt.Sprintf("https://results.raceroster.com/v2/en-US/results/%s/results?subEvent=%s", eventID, subEventID),
				Platform:  result.PlatformRaceRoster,
			}
			if strings.TrimSpace(c.Time) == "" {
				c.Time = row.GunTime
			}
			if keepRow(c) {
				candidates = append(candidates, c)
			}
		}

		if len(*body.Data) < raceRosterPageSize || (page+1)*raceRosterPageSize >= body.Meta.Data.Total {
			break
		}
	}

	return candidates, nil
}
