package platform

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
)

const MyChipTimeURL = "https://www.mychiptime.com"

var (
	noResultsPattern = regexp.MustCompile(`(?i)no\s+(results|records|participants)\s+(found|match)`)
	countryPattern   = regexp.MustCompile(`\s*\([A-Z]{2,3}\)\s*$`)
)

// MyChipTime searches the server-rendered result tables on mychiptime.com
type MyChipTime struct {
	client *resty.Client
	url    string
}

// NewMyChipTime creates a MyChipTime adapter
func NewMyChipTime(client *resty.Client) *MyChipTime {
	return &MyChipTime{client: client, url: MyChipTimeURL}
}

func (m *MyChipTime) Platform() result.Platform {
	return result.PlatformMyChipTime
}

// FetchCandidates searches each sub-event of the race by runner name
func (m *MyChipTime) FetchCandidates(ctx context.Context, cfg race.RaceConfig, year int, runnerName string) ([]result.CandidateResult, error) {
	id, err := identifierFor(cfg, year)
	if err != nil {
		return nil, err
	}
	subs := id.SubEvents
	if len(subs) == 0 {
		if id.EventID == "" {
			return nil, missingID(cfg, year, "event id")
		}
		subs = []race.SubEvent{{ID: id.EventID}}
	}

	first, last, ok := searchName(runnerName)
	if !ok {
		return nil, nil
	}

	return searchSubEvents(ctx, runnerName, subs, func(ctx context.Context, sub race.SubEvent) ([]result.CandidateResult, error) {
		return m.search(ctx, sub.ID, first, last)
	})
}

func (m *MyChipTime) search(ctx context.Context, eventID, first, last string) ([]result.CandidateResult, error) {
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"eID":   eventID,
			"lName": last,
			"fName": first,
		}).
		Get(m.url + "/searchResultGen.php")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	doc, err := parseHTML(resp)
	if err != nil {
		return nil, err
	}

	return m.parseResults(doc, resp.Request.URL)
}

// parseResults reads the first table whose header row names a runner column.
// Column order differs between events, so cells are located by header text.
func (m *MyChipTime) parseResults(doc *goquery.Document, pageURL string) ([]result.CandidateResult, error) {
	var (
		table, header *goquery.Selection
		cols          map[string]int
	)

	doc.Find("table").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		c, h := headerColumns(sel)
		if _, ok := c["name"]; ok {
			table, header, cols = sel, h, c
			return false
		}
		return true
	})

	if table == nil {
		if noResultsPattern.MatchString(doc.Text()) {
			return nil, nil
		}
		return nil, parseErrorf("no results table at %s", pageURL)
	}

	base, _ := url.Parse(pageURL)
	candidates := make([]result.CandidateResult, 0)

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 || row.IsSelection(header) {
			return
		}
		cell := func(key string) string {
			i, ok := cols[key]
			if !ok || i >= cells.Length() {
				return ""
			}
			return strings.TrimSpace(cells.Eq(i).Text())
		}

		c := result.CandidateResult{
			Name:     countryPattern.ReplaceAllString(cell("name"), ""),
			Time:     cell("time"),
			Place:    cell("place"),
			DivPlace: cell("div"),
			Bib:      cell("bib"),
			Platform: result.PlatformMyChipTime,
		}
		if c.Time == "" {
			c.Time = cell("gun")
		}

		if href, ok := row.Find("a[href]").First().Attr("href"); ok {
			c.SourceURL, c.SourceID = resolveLink(base, href, "pID", "rID", "id")
		}
		if c.SourceID == "" {
			c.SourceID = c.Bib
		}

		if keepRow(c) {
			candidates = append(candidates, c)
		}
	})

	return candidates, nil
}

// headerColumns maps the header cells of a table onto canonical column keys
// and returns the row they came from
func headerColumns(table *goquery.Selection) (map[string]int, *goquery.Selection) {
	cols := make(map[string]int)

	header := table.Find("thead tr").First()
	if header.Length() == 0 {
		header = table.Find("tr").First()
	}

	header.Find("th, td").Each(func(i int, th *goquery.Selection) {
		text := strings.ToLower(strings.TrimSpace(th.Text()))
		key := ""
		switch {
		case strings.Contains(text, "name"):
			key = "name"
		case strings.Contains(text, "chip") || strings.Contains(text, "net"):
			key = "time"
		case strings.Contains(text, "gun") || strings.Contains(text, "clock"):
			key = "gun"
		case text == "time" || text == "finish" || text == "finish time":
			key = "time"
		case strings.Contains(text, "div") || strings.Contains(text, "age grp") || strings.Contains(text, "ag place"):
			key = "div"
		case strings.Contains(text, "place") || strings.Contains(text, "overall") || text == "pl" || text == "pos":
			key = "place"
		case strings.Contains(text, "bib"):
			key = "bib"
		}
		if key == "" {
			return
		}
		if _, taken := cols[key]; !taken {
			cols[key] = i
		}
	})

	return cols, header
}

// resolveLink makes href absolute against base and pulls the first present
// query parameter out of it as the row's source id
func resolveLink(base *url.URL, href string, params ...string) (string, string) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", ""
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}

	q := abs.Query()
	for _, p := range params {
		if v := q.Get(p); v != "" {
			return abs.String(), v
		}
	}
	return abs.String(), ""
}
