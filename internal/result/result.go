package result

import (
	"encoding/json"
	"math"
	"time"
)

// Platform identifies a third-party results platform
type Platform string

const (
	PlatformRunSignUp  Platform = "runsignup"
	PlatformMika       Platform = "mika"
	PlatformMyRace     Platform = "myrace"
	PlatformNYRR       Platform = "nyrr"
	PlatformRaceRoster Platform = "raceroster"
	PlatformMyChipTime Platform = "mychiptime"
	PlatformRTRT       Platform = "rtrt"
)

// Confidence describes how certain a lookup is about its answer
type Confidence string

const (
	ConfidenceExact     Confidence = "exact"
	ConfidenceAmbiguous Confidence = "ambiguous-multiple"
	ConfidenceNotFound  Confidence = "not-found"
)

// MatchKind records which comparison rule paired a row with the query
type MatchKind string

const (
	KindExactName MatchKind = "exact-name"
	KindToken     MatchKind = "token"
)

// CandidateResult is one scraped row before normalization
type CandidateResult struct {
	Name      string   `json:"name"`
	Time      string   `json:"time"`
	Place     string   `json:"place,omitempty"`
	DivPlace  string   `json:"div_place,omitempty"`
	Bib       string   `json:"bib,omitempty"`
	SourceID  string   `json:"source_id,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
	Platform  Platform `json:"platform"`
	EventType string   `json:"event_type,omitempty"`
}

// MatchResult is the canonical answer for a runner lookup
type MatchResult struct {
	Name       string         `json:"name"`
	FinishTime *time.Duration `json:"-"`
	RawTime    string         `json:"raw_time"`
	Place      *int           `json:"place,omitempty"`
	DivPlace   *int           `json:"div_place,omitempty"`
	Bib        string         `json:"bib,omitempty"`
	SourceID   string         `json:"source_id,omitempty"`
	SourceURL  string         `json:"source_url,omitempty"`
	Platform   Platform       `json:"platform"`
	EventType  string         `json:"event_type,omitempty"`
	Kind       MatchKind      `json:"kind,omitempty"`
	Confidence Confidence     `json:"confidence"`
}

// FinishTimeText renders the finish duration as H:MM:SS, or the raw text when
// the duration could not be parsed
func (m MatchResult) FinishTimeText() string {
	if m.FinishTime == nil {
		return m.RawTime
	}
	return FormatDuration(*m.FinishTime)
}

// MarshalJSON adds the formatted finish time and its length in seconds
func (m MatchResult) MarshalJSON() ([]byte, error) {
	type plain MatchResult
	out := struct {
		plain
		FinishTime    string   `json:"finish_time,omitempty"`
		FinishSeconds *float64 `json:"finish_seconds,omitempty"`
	}{plain: plain(m)}

	if m.FinishTime != nil {
		secs := m.FinishTime.Seconds()
		out.FinishTime = FormatDuration(*m.FinishTime)
		out.FinishSeconds = &secs
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the finish duration from finish_seconds
func (m *MatchResult) UnmarshalJSON(data []byte) error {
	type plain MatchResult
	in := struct {
		*plain
		FinishSeconds *float64 `json:"finish_seconds"`
	}{plain: (*plain)(m)}

	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.FinishSeconds != nil {
		d := time.Duration(math.Round(*in.FinishSeconds * float64(time.Second)))
		m.FinishTime = &d
	}
	return nil
}
