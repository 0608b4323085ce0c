package cli

import (
	"fmt"
	"sort"
	"strings"
)

// SortOrder represents the available sorting options for the races listing
type SortOrder string

const (
	SortByDate     SortOrder = "date"
	SortByName     SortOrder = "name"
	SortByPlatform SortOrder = "platform"
	SortByTag      SortOrder = "tag"
)

func parseSortOrder(s string) (SortOrder, error) {
	order := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	switch order {
	case SortByDate, SortByName, SortByPlatform, SortByTag:
		return order, nil
	}
	return "", fmt.Errorf("invalid sort: %s (must be 'date', 'name', 'platform' or 'tag')", s)
}

// sortRaces sorts race entries based on the specified sort order
func sortRaces(races []RaceEntry, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDate:
		sort.SliceStable(races, func(i, j int) bool {
			return compareByDate(races[i], races[j])
		})
	case SortByName:
		sort.SliceStable(races, func(i, j int) bool {
			return strings.ToLower(races[i].Name) < strings.ToLower(races[j].Name)
		})
	case SortByPlatform:
		sort.SliceStable(races, func(i, j int) bool {
			if races[i].Platform != races[j].Platform {
				return races[i].Platform < races[j].Platform
			}
			// If platforms are equal, sort by date
			return compareByDate(races[i], races[j])
		})
	case SortByTag:
		sort.SliceStable(races, func(i, j int) bool {
			return races[i].Tag < races[j].Tag
		})
	}
}

// compareByDate compares two races by their next race date
// Returns true if race i should come before race j
func compareByDate(i, j RaceEntry) bool {
	// Dates are ISO formatted, so string order is date order
	if i.NextDate != "" && j.NextDate != "" && i.NextDate != j.NextDate {
		return i.NextDate < j.NextDate
	}

	// If only one date is known, put the known one first
	if i.NextDate != "" && j.NextDate == "" {
		return true
	}
	if i.NextDate == "" && j.NextDate != "" {
		return false
	}

	return strings.ToLower(i.Name) < strings.ToLower(j.Name)
}
