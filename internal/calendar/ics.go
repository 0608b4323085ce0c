package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Event is one all-day calendar entry
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	URL         string
	Date        time.Time
}

// GenerateICS generates an iCalendar (.ics) document holding the events
func GenerateICS(name string, events []Event, now time.Time) string {
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//Race Results//race-results//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if name != "" {
		ics.WriteString(fmt.Sprintf("X-WR-CALNAME:%s\r\n", escapeICS(name)))
	}

	stamp := formatICSTime(now)
	for _, evt := range events {
		ics.WriteString("BEGIN:VEVENT\r\n")
		ics.WriteString(fmt.Sprintf("UID:%s\r\n", evt.UID))
		ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", stamp))

		// All-day event; DTEND is exclusive
		ics.WriteString(fmt.Sprintf("DTSTART;VALUE=DATE:%s\r\n", formatICSDate(evt.Date)))
		ics.WriteString(fmt.Sprintf("DTEND;VALUE=DATE:%s\r\n", formatICSDate(evt.Date.AddDate(0, 0, 1))))

		ics.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS(evt.Summary)))
		if evt.Description != "" {
			ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(evt.Description)))
		}
		if evt.Location != "" {
			ics.WriteString(fmt.Sprintf("LOCATION:%s\r\n", escapeICS(evt.Location)))
		}
		if evt.URL != "" {
			ics.WriteString(fmt.Sprintf("URL:%s\r\n", evt.URL))
		}
		ics.WriteString("TRANSP:TRANSPARENT\r\n")
		ics.WriteString("END:VEVENT\r\n")
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func formatICSDate(t time.Time) string {
	return t.Format("20060102")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
