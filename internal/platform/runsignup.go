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
	RunSignUpURL      = "https://runsignup.com"
	runSignUpPageSize = 100
)

// RunSignUp queries the public RunSignUp results API
type RunSignUp struct {
	client *resty.Client
	url    string
}

type runSignUpResponse struct {
	ResultSets *[]struct {
		Name    string                    `json:"individual_result_set_name"`
		Results jsonRows[runSignUpResult] `json:"results"`
	} `json:"individual_results_sets"`
}

type runSignUpResult struct {
	ResultID      flexString `json:"result_id"`
	Place         flexString `json:"place"`
	DivisionPlace flexString `json:"division_place"`
	Bib           flexString `json:"bib"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	ChipTime      string     `json:"chip_time"`
	ClockTime     string     `json:"clock_time"`
}

// NewRunSignUp creates a RunSignUp adapter
func NewRunSignUp(client *resty.Client) *RunSignUp {
	return &RunSignUp{client: client, url: RunSignUpURL}
}

func (r *RunSignUp) Platform() result.Platform {
	return result.PlatformRunSignUp
}

// FetchCandidates searches each sub-event of the race by last name
func (r *RunSignUp) FetchCandidates(ctx context.Context, cfg race.RaceConfig, year int, runnerName string) ([]result.CandidateResult, error) {
	id, err := identifierFor(cfg, year)
	if err != nil {
		return nil, err
	}
	if id.RaceID == "" {
		return nil, missingID(cfg, year, "race id")
	}
	if len(id.SubEvents) == 0 {
		return nil, missingID(cfg, year, "event ids")
	}

	_, last, ok := searchName(runnerName)
	if !ok {
		return nil, nil
	}

	return searchSubEvents(ctx, runnerName, id.SubEvents, func(ctx context.Context, sub race.SubEvent) ([]result.CandidateResult, error) {
		return r.search(ctx, id.RaceID, sub.ID, last)
	})
}

func (r *RunSignUp) search(ctx context.Context, raceID, eventID, last string) ([]result.CandidateResult, error) {
	endpoint := fmt.Sprintf("%s/Rest/race/%s/results/get-results", r.url, raceID)
	candidates := make([]result.CandidateResult, 0)

	for page := 1; page <= maxPages; page++ {
		resp, err := r.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"format":           "json",
				"event_id":         eventID,
				"last_name":        last,
				"page":             strconv.Itoa(page),
				"results_per_page": strconv.Itoa(runSignUpPageSize),
			}).
			Get(endpoint)
		if err := checkResponse(resp, err); err != nil {
			return nil, err
		}

		var body runSignUpResponse
		if err := decodeJSON(resp, &body); err != nil {
			return nil, err
		}
		if body.ResultSets == nil {
			return nil, parseErrorf("%s: missing individual_results_sets", endpoint)
		}

		rows := 0
		for _, set := range *body.ResultSets {
			rows += len(set.Results)
			for _, res := range set.Results {
				c := result.CandidateResult{
					Name:      strings.TrimSpace(res.FirstName + " " + res.LastName),
					Time:      res.ChipTime,
					Place:     res.Place.String(),
					DivPlace:  res.DivisionPlace.String(),
					Bib:       res.Bib.String(),
					SourceID:  res.ResultID.String(),
					SourceURL: fmt.Sprintf("%s/Race/Results/%s", RunSignUpURL, raceID),
					Platform:  result.PlatformRunSignUp,
				}
				if strings.TrimSpace(c.Time) == "" {
					c.Time = res.ClockTime
				}
				if keepRow(c) {
					candidates = append(candidates, c)
				}
			}
		}

		if rows < runSignUpPageSize {
			break
		}
	}

	return candidates, nil
}
