package calendar

import (
	"strings"
	"testing"
	"time"
)

var now = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

func TestGenerateICS(t *testing.T) {
	events := []Event{
		{
			UID:         "austin-2027@race-results",
			Summary:     "Ascension Seton Austin Marathon",
			Description: "Results on mychiptime",
			Location:    "Austin, TX",
			URL:         "https://www.mychiptime.com",
			Date:        time.Date(2027, 2, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			UID:     "nyc-2026@race-results",
			Summary: "TCS New York City Marathon",
			Date:    time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	ics := GenerateICS("Race Results", events, now)

	requiredFields := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Race Results//race-results//EN",
		"X-WR-CALNAME:Race Results",
		"UID:austin-2027@race-results",
		"DTSTAMP:20260301T123000Z",
		"DTSTART;VALUE=DATE:20270214",
		"DTEND;VALUE=DATE:20270215",
		"SUMMARY:Ascension Seton Austin Marathon",
		"DESCRIPTION:Results on mychiptime",
		"LOCATION:Austin\\, TX", // Comma is escaped
		"URL:https://www.mychiptime.com",
		"UID:nyc-2026@race-results",
		"DTSTART;VALUE=DATE:20261101",
		"END:VCALENDAR",
	}

	for _, field := range requiredFields {
		if !strings.Contains(ics, field) {
			t.Errorf("ICS missing required field: %s", field)
		}
	}

	if got := strings.Count(ics, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("ICS has %d events, want 2", got)
	}

	// Optional fields are omitted when empty
	nyc := ics[strings.Index(ics, "UID:nyc-2026"):]
	if strings.Contains(nyc, "LOCATION:") {
		t.Error("event without location should not carry LOCATION")
	}

	// Check that every line ends with \r\n
	for _, line := range strings.Split(strings.TrimSuffix(ics, "\r\n"), "\n") {
		if !strings.HasSuffix(line, "\r") {
			t.Errorf("line %q should end with \\r\\n", line)
		}
	}
}

func TestGenerateICS_Empty(t *testing.T) {
	ics := GenerateICS("", nil, now)

	if strings.Contains(ics, "BEGIN:VEVENT") {
		t.Error("empty calendar should have no events")
	}
	if strings.Contains(ics, "X-WR-CALNAME") {
		t.Error("calendar without a name should not carry X-WR-CALNAME")
	}
	if !strings.HasSuffix(ics, "END:VCALENDAR\r\n") {
		t.Error("calendar should be closed")
	}
}

func TestEscapeICS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dietz & Watson Philadelphia Marathon", "Dietz & Watson Philadelphia Marathon"},
		{"Austin, TX", "Austin\\, TX"},
		{"a;b", "a\\;b"},
		{"line one\nline two", "line one\\nline two"},
		{"back\\slash", "back\\\\slash"},
	}

	for _, tt := range tests {
		if got := escapeICS(tt.in); got != tt.want {
			t.Errorf("escapeICS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatICSTime(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	in := time.Date(2026, 2, 15, 7, 0, 0, 0, loc)

	if got := formatICSTime(in); got != "20260215T130000Z" {
		t.Errorf("formatICSTime() = %q, want 20260215T130000Z", got)
	}
}
