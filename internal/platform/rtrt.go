package platform

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
	"github.com/pfrederiksen/race-results/internal/runner"
)

const (
	RTRTURL        = "https://api.rtrt.me"
	rtrtMaxResults = 50
	rtrtFinish     = "FINISH"
)

// RTRT queries the RTRT.me tracking API. Profiles are searched first and
// finish splits are fetched only for profiles whose name matches the runner.
type RTRT struct {
	client *resty.Client
	url    string
	appID  string
	token  string
}

type rtrtError struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

type rtrtProfile struct {
	PID    flexString `json:"pid"`
	Name   string     `json:"name"`
	Bib    flexString `json:"bib"`
	Course string     `json:"course"`
}

type rtrtProfilesResponse struct {
	List  *jsonRows[rtrtProfile] `json:"list"`
	Error *rtrtError             `json:"error"`
}

type rtrtSplitsResponse struct {
	List *jsonRows[struct {
		Point    string     `json:"point"`
		Time     string     `json:"time"`
		NetTime  string     `json:"netTime"`
		Place    flexString `json:"place"`
		PlaceDiv flexString `json:"placeDiv"`
		IsFinish bool       `json:"isFinish"`
	}] `json:"list"`
	Error *rtrtError `json:"error"`
}

// NewRTRT creates an RTRT adapter authenticated with the given app id and token
func NewRTRT(client *resty.Client, appID, token string) *RTRT {
	return &RTRT{client: client, url: RTRTURL, appID: appID, token: token}
}

func (r *RTRT) Platform() result.Platform {
	return result.PlatformRTRT
}

// FetchCandidates returns one candidate per matching profile that has a
// finish split
func (r *RTRT) FetchCandidates(ctx context.Context, cfg race.RaceConfig, year int, runnerName string) ([]result.CandidateResult, error) {
	id, err := identifierFor(cfg, year)
	if err != nil {
		return nil, err
	}
	if id.EventID == "" {
		return nil, missingID(cfg, year, "event id")
	}

	_, last, ok := searchName(runnerName)
	if !ok {
		return nil, nil
	}

	profiles, err := r.profiles(ctx, id.EventID, last)
	if err != nil {
		return nil, err
	}

	candidates := make([]result.CandidateResult, 0)
	for _, p := range profiles {
		if !runner.Matches(runnerName, p.Name) {
			continue
		}

		c, ok, err := r.finish(ctx, id.EventID, p)
		if err != nil {
			return nil, err
		}
		if ok && keepRow(c) {
			candidates = append(candidates, c)
		}
	}

	return candidates, nil
}

func (r *RTRT) params() map[string]string {
	return map[string]string{
		"appid": r.appID,
		"token": r.token,
	}
}

func (r *RTRT) profiles(ctx context.Context, eventID, search string) ([]rtrtProfile, error) {
	endpoint := fmt.Sprintf("%s/events/%s/profiles", r.url, eventID)

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(r.params()).
		SetQueryParam("search", search).
		SetQueryParam("max", strconv.Itoa(rtrtMaxResults)).
		Get(endpoint)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	var body rtrtProfilesResponse
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}

	switch {
	case body.List != nil:
		return *body.List, nil
	case body.Error != nil && body.Error.Type == "no_results":
		return nil, nil
	case body.Error != nil:
		return nil, parseErrorf("%s: %s %s", endpoint, body.Error.Type, body.Error.Msg)
	}
	return nil, parseErrorf("%s: missing list", endpoint)
}

// finish reads the finish split of one profile. A profile without a finish
// split, or with a malformed splits payload, yields no candidate.
func (r *RTRT) finish(ctx context.Context, eventID string, p rtrtProfile) (result.CandidateResult, bool, error) {
	endpoint := fmt.Sprintf("%s/events/%s/profiles/%s/splits", r.url, eventID, p.PID)

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(r.params()).
		Get(endpoint)
	if err := checkResponse(resp, err); err != nil {
		return result.CandidateResult{}, false, err
	}

	var body rtrtSplitsResponse
	if err := decodeJSON(resp, &body); err != nil || body.List == nil {
		return result.CandidateResult{}, false, nil
	}

	for _, split := range *body.List {
		if !split.IsFinish && !strings.EqualFold(split.Point, rtrtFinish) {
			continue
		}

		t := split.NetTime
		if strings.TrimSpace(t) == "" {
			t = split.Time
		}
		return result.CandidateResult{
			Name:      p.Name,
			Time:      t,
			Place:     split.Place.String(),
			DivPlace:  split.PlaceDiv.String(),
			Bib:       p.Bib.String(),
			SourceID:  p.PID.String(),
			SourceURL: fmt.Sprintf("https://track.rtrt.me/e/%s#/tracker/%s", eventID, p.PID),
			Platform:  result.PlatformRTRT,
			EventType: p.Course,
		}, true, nil
	}

	return result.CandidateResult{}, false, nil
}
