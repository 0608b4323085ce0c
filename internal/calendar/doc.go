// Package calendar renders race dates as an iCalendar feed.
package calendar
