package platform

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pfrederiksen/race-results/internal/race"
	"github.com/pfrederiksen/race-results/internal/result"
)

const MyRaceURL = "https://myrace.ai"

// myRaceScript collects the rendered results table. The page shows either
// the table or an empty-state panel once the search has finished.
const myRaceScript = `(() => {
  const table = document.querySelector("table.results-table");
  const empty = document.querySelector(".results-empty") !== null;
  if (!table) {
    return { table: false, empty: empty, rows: [] };
  }
  const text = (row, sel) => {
    const el = row.querySelector(sel);
    return el ? el.textContent.trim() : "";
  };
  const rows = Array.from(table.querySelectorAll("tbody tr")).map((row) => {
    const link = row.querySelector("a[href]");
    return {
      place: text(row, ".col-place"),
      name: text(row, ".col-name"),
      bib: text(row, ".col-bib"),
      time: text(row, ".col-time"),
      division: text(row, ".col-division-place"),
      href: link ? link.getAttribute("href") : "",
    };
  });
  return { table: true, empty: empty, rows: rows };
})()`

type myRacePage struct {
	Table bool `json:"table"`
	Empty bool `json:"empty"`
	Rows  []struct {
		Place    string `json:"place"`
		Name     string `json:"name"`
		Bib      string `json:"bib"`
		Time     string `json:"time"`
		Division string `json:"division"`
		Href     string `json:"href"`
	} `json:"rows"`
}

// MyRace reads MyRace.ai result tables, which are rendered client-side
type MyRace struct {
	renderer Renderer
	url      string
}

// NewMyRace creates a MyRace.ai adapter that renders pages with renderer
func NewMyRace(renderer Renderer) *MyRace {
	return &MyRace{renderer: renderer, url: MyRaceURL}
}

func (m *MyRace) Platform() result.Platform {
	return result.PlatformMyRace
}

// FetchCandidates renders the race's result search for the runner's last name
func (m *MyRace) FetchCandidates(ctx context.Context, cfg race.RaceConfig, year int, runnerName string) ([]result.CandidateResult, error) {
	id, err := identifierFor(cfg, year)
	if err != nil {
		return nil, err
	}
	if id.EventID == "" {
		return nil, missingID(cfg, year, "event id")
	}
	if m.renderer == nil {
		return nil, fmt.Errorf("%w: no browser renderer configured", ErrNetwork)
	}

	_, last, ok := searchName(runnerName)
	if !ok {
		return nil, nil
	}

	pageURL := fmt.Sprintf("%s/races/%s/results?search=%s", m.url, url.PathEscape(id.EventID), url.QueryEscape(last))

	var page myRacePage
	err = m.renderer.Render(ctx, Page{
		URL:          pageURL,
		WaitSelector: "table.results-table, .results-empty",
		Script:       myRaceScript,
	}, &page)
	if err != nil {
		return nil, err
	}

	if !page.Table {
		if page.Empty {
			return nil, nil
		}
		return nil, parseErrorf("no results table at %s", pageURL)
	}

	base, _ := url.Parse(pageURL)
	candidates := make([]result.CandidateResult, 0, len(page.Rows))
	for _, row := range page.Rows {
		c := result.CandidateResult{
			Name:     row.Name,
			Time:     row.Time,
			Place:    row.Place,
			DivPlace: row.Division,
			Bib:      row.Bib,
			SourceID: row.Bib,
			Platform: result.PlatformMyRace,
		}
		if row.Href != "" {
			c.SourceURL, _ = resolveLink(base, row.Href)
		}
		if keepRow(c) {
			candidates = append(candidates, c)
		}
	}

	return candidates, nil
}
