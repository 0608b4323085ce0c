package result

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// "3:45:12", "03:45:12.4"
	hmsPattern = regexp.MustCompile(`^(\d{1,3}):(\d{1,2}):(\d{1,2})(?:[.,](\d{1,3}))?$`)

	// "45:12", "45:12.3"
	msPattern = regexp.MustCompile(`^(\d{1,3}):(\d{1,2})(?:[.,](\d{1,3}))?$`)

	// "3h45m12s", "3h 45m 12s", "3h45m", "45m12.5s"
	unitPattern = regexp.MustCompile(`^(?:(\d+)\s*h(?:rs?)?)?\s*(?:(\d+)\s*m(?:in)?)?\s*(?:(\d+(?:\.\d+)?)\s*s(?:ec)?)?$`)

	// "12", "1,234", "12th", "12/345"
	placePattern = regexp.MustCompile(`^(\d[\d,]*)(?:st|nd|rd|th)?(?:\s*/\s*\d[\d,]*)?$`)
)

// Normalize maps a raw platform row into the canonical record. Unparseable times
// keep their raw text with a nil duration; the record is never dropped.
func Normalize(c CandidateResult) MatchResult {
	m := MatchResult{
		Name:      strings.Join(strings.Fields(c.Name), " "),
		RawTime:   strings.TrimSpace(c.Time),
		Bib:       strings.TrimSpace(c.Bib),
		SourceID:  c.SourceID,
		SourceURL: c.SourceURL,
		Platform:  c.Platform,
		EventType: c.EventType,
	}

	if d, ok := ParseDuration(c.Time); ok {
		m.FinishTime = &d
	}
	if p, ok := ParsePlace(c.Place); ok {
		m.Place = &p
	}
	if p, ok := ParsePlace(c.DivPlace); ok {
		m.DivPlace = &p
	}

	return m
}

// ParseDuration parses a finish time in any format the platforms emit.
// A zero duration is reported as unparseable since platforms use "0:00:00" as
// a placeholder for runners without a time.
func ParseDuration(raw string) (time.Duration, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	var d time.Duration
	var ok bool

	switch {
	case hmsPattern.MatchString(s):
		m := hmsPattern.FindStringSubmatch(s)
		d, ok = clockDuration(m[1], m[2], m[3], m[4], true)
	case msPattern.MatchString(s):
		m := msPattern.FindStringSubmatch(s)
		d, ok = clockDuration("0", m[1], m[2], m[3], false)
	case unitPattern.MatchString(s):
		m := unitPattern.FindStringSubmatch(s)
		d, ok = unitDuration(m[1], m[2], m[3])
	}

	if !ok || d <= 0 {
		return 0, false
	}
	return d, true
}

// clockDuration builds a duration from clock fields. Minutes may reach 60 or
// more only when the clock has no hours field, as in "125:30".
func clockDuration(hours, minutes, seconds, fraction string, hasHours bool) (time.Duration, bool) {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	if s >= 60 || (hasHours && m >= 60) {
		return 0, false
	}

	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
	if fraction != "" {
		ms, _ := strconv.Atoi((fraction + "00")[:3])
		d += time.Duration(ms) * time.Millisecond
	}
	return d, true
}

func unitDuration(hours, minutes, seconds string) (time.Duration, bool) {
	if hours == "" && minutes == "" && seconds == "" {
		return 0, false
	}

	var d time.Duration
	if hours != "" {
		h, _ := strconv.Atoi(hours)
		d += time.Duration(h) * time.Hour
	}
	if minutes != "" {
		m, _ := strconv.Atoi(minutes)
		if hours != "" && m >= 60 {
			return 0, false
		}
		d += time.Duration(m) * time.Minute
	}
	if seconds != "" {
		s, err := strconv.ParseFloat(seconds, 64)
		if err != nil || s >= 60 {
			return 0, false
		}
		d += time.Duration(math.Round(s*1000)) * time.Millisecond
	}
	return d, true
}

// ParsePlace parses an overall or division place. Non-positive places are
// rejected.
func ParsePlace(raw string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	m := placePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// FormatDuration renders a duration as H:MM:SS, truncating sub-second parts
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
