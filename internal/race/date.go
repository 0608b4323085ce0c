package race

import "time"

// DateRule maps a year to the race date. Rules must be pure.
type DateRule func(year int) time.Time

// NthWeekday is the n-th given weekday of a month, e.g. the third Sunday of
// February
func NthWeekday(month time.Month, weekday time.Weekday, n int) DateRule {
	return func(year int) time.Time {
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		offset := (int(weekday) - int(first.Weekday()) + 7) % 7
		return first.AddDate(0, 0, offset+7*(n-1))
	}
}

// LastWeekday is the last given weekday of a month
func LastWeekday(month time.Month, weekday time.Weekday) DateRule {
	return func(year int) time.Time {
		last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
		offset := (int(last.Weekday()) - int(weekday) + 7) % 7
		return last.AddDate(0, 0, -offset)
	}
}

// WeekdayBefore is the closest given weekday strictly before another rule's
// date, e.g. the Sunday before Thanksgiving
func WeekdayBefore(rule DateRule, weekday time.Weekday) DateRule {
	return func(year int) time.Time {
		anchor := rule(year)
		offset := (int(anchor.Weekday()) - int(weekday) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		return anchor.AddDate(0, 0, -offset)
	}
}

// YearFor picks the race year an order refers to: the year of the most recent
// race date on or before the order date. An order placed in January for a
// November race refers to the previous year.
func YearFor(cfg RaceConfig, orderDate time.Time) int {
	year := orderDate.Year()
	day := time.Date(year, orderDate.Month(), orderDate.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(cfg.Date(year)) {
		return year - 1
	}
	return year
}
