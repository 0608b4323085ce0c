package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
)

const (
	NYRRURL      = "https://rmsprodapi.nyrr.org"
	nyrrPageSize = 100
)

// NYRR queries the finisher search API behind results.nyrr.org
type NYRR struct {
	client *resty.Client
	url    string
}

type nyrrRequest struct {
	EventCode      string `json:"eventCode"`
	SearchString   string `json:"searchString"`
	PageIndex      int    `json:"pageIndex"`
	PageSize       int    `json:"pageSize"`
	SortColumn     string `json:"sortColumn"`
	SortDescending bool   `json:"sortDescending"`
}

type nyrrResponse struct {
	TotalItems int `json:"totalItems"`
	Items      *jsonRows[struct {
		RunnerID      flexString `json:"runnerId"`
		FirstName     string     `json:"firstName"`
		LastName      string     `json:"lastName"`
		Bib           flexString `json:"bib"`
		OverallTime   string     `json:"overallTime"`
		OverallPlace  flexString `json:"overallPlace"`
		AgeGroupPlace flexString `json:"ageGroupPlace"`
	}] `json:"items"`
}

// NewNYRR creates an NYRR adapter
func NewNYRR(client *resty.Client) *NYRR {
	return &NYRR{client: client, url: NYRRURL}
}

func (n *NYRR) Platform() result.Platform {
	return result.PlatformNYRR
}

// FetchCandidates pages through finishers whose name matches the runner's
// last name
func (n *NYRR) FetchCandidates(ctx context.Context, cfg race.RaceConfig, year int, runnerName string) ([]result.CandidateResult, error) {
	id, err := identifierFor(cfg, year)
	if err != nil {
		return nil, err
	}
	if id.Code == "" {
		return nil, missingID(cfg, year, "event code")
	}

	_, last, ok := searchName(runnerName)
	if !ok {
		return nil, nil
	}

	endpoint := n.url + "/api/v2/runners/finishers-filter"
	candidates := make([]result.CandidateResult, 0)

	for page := 1; page <= maxPages; page++ {
		resp, err := n.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(nyrrRequest{
				EventCode:    id.Code,
				SearchString: last,
				PageIndex:    page,
				PageSize:     nyrrPageSize,
				SortColumn:   "overallTime",
			}).
			Post(endpoint)
		if err := checkResponse(resp, err); err != nil {
			return nil, err
		}

		var body nyrrResponse
		if err := decodeJSON(resp, &body); err != nil {
			return nil, err
		}
		if body.Items == nil {
			return nil, parseErrorf("%s: missing items", endpoint)
		}

		for _, item := range *body.Items {
			c := result.CandidateResult{
				Name:      strings.TrimSpace(item.FirstName + " " + item.LastName),
				Time:      item.OverallTime,
				Place:     item.OverallPlace.String(),
				DivPlace:  item.AgeGroupPlace.String(),
				Bib:       item.Bib.String(),
				SourceID:  item.RunnerID.String(),
				SourceURL: fmt.Sprintf("https://results.nyrr.org/event/%s/result/%s", id.Code, item.Bib),
				Platform:  result.PlatformNYRR,
			}
			if keepRow(c) {
				candidates = append(candidates, c)
			}
		}

		if len(*body.Items) < nyrrPageSize || page*nyrrPageSize >= body.TotalItems {
			break
		}
	}

	return candidates, nil
}
