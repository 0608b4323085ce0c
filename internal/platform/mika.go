package platform

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
)

// Mika scrapes the search pages of Mika Timing result sites. Every race has
// its own results host, so the base URL comes from the race identifier.
type Mika struct {
	client *resty.Client
}

// NewMika creates a Mika Timing adapter
func NewMika(client *resty.Client) *Mika {
	return &Mika{client: client}
}

func (m *Mika) Platform() result.Platform {
	return result.PlatformMika
}

// FetchCandidates searches each sub-event of the race by first and last name
func (m *Mika) FetchCandidates(ctx context.Context, cfg race.RaceConfig, year int, runnerName string) ([]result.CandidateResult, error) {
	id, err := identifierFor(cfg, year)
	if err != nil {
		return nil, err
	}
	if id.BaseURL == "" {
		return nil, missingID(cfg, year, "results URL")
	}
	if len(id.SubEvents) == 0 {
		return nil, missingID(cfg, year, "event codes")
	}

	first, last, ok := searchName(runnerName)
	if !ok {
		return nil, nil
	}

	return searchSubEvents(ctx, runnerName, id.SubEvents, func(ctx context.Context, sub race.SubEvent) ([]result.CandidateResult, error) {
		return m.search(ctx, id.BaseURL, sub.ID, first, last)
	})
}

func (m *Mika) search(ctx context.Context, baseURL, event, first, last string) ([]result.CandidateResult, error) {
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"pid":               "search",
			"event":             event,
			"search[name]":      last,
			"search[firstname]": first,
			"num_results":       "100",
		}).
		Get(baseURL)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	doc, err := parseHTML(resp)
	if err != nil {
		return nil, err
	}

	return parseMika(doc, resp.Request.URL)
}

// parseMika reads the list-group result markup shared by Mika sites
func parseMika(doc *goquery.Document, pageURL string) ([]result.CandidateResult, error) {
	list := doc.Find(".list-group")
	if list.Length() == 0 {
		return nil, parseErrorf("no result list at %s", pageURL)
	}

	base, _ := url.Parse(pageURL)
	candidates := make([]result.CandidateResult, 0)

	list.Find("li.list-group-item").Not(".list-group-header").Each(func(_ int, row *goquery.Selection) {
		link := row.Find(".type-fullname a").First()

		c := result.CandidateResult{
			Name:     countryPattern.ReplaceAllString(strings.TrimSpace(link.Text()), ""),
			Time:     mikaCell(row.Find(".type-time").Last()),
			Place:    mikaCell(row.Find(".place-primary").First()),
			DivPlace: mikaCell(row.Find(".place-secondary").First()),
			Bib:      mikaCell(row.Find(".type-field").First()),
			Platform: result.PlatformMika,
		}
		if href, ok := link.Attr("href"); ok {
			c.SourceURL, c.SourceID = resolveLink(base, href, "idp")
		}

		if keepRow(c) {
			candidates = append(candidates, c)
		}
	})

	return candidates, nil
}

// mikaCell returns a cell's text without the inline label Mika renders for
// narrow screens
func mikaCell(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	clone := sel.Clone()
	clone.Find(".list-label, .visible-xs").Remove()
	return strings.TrimSpace(clone.Text())
}
