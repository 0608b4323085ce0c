package platform

import (
	"errors"
	"fmt"

	"github.com/pfrederiksen/race-results/internal/race"
)

var (
	// ErrNetwork is returned when a platform is unreachable, times out or
	// answers with a server-side failure
	ErrNetwork = errors.New("platform unreachable")

	// ErrParse is returned when a platform response does not have the
	// expected shape, which usually means the site changed
	ErrParse = errors.New("unexpected platform response")

	// ErrNotSupportedForYear is returned when a race has no identifier for
	// the requested year
	ErrNotSupportedForYear = errors.New("race not supported for this year")
)

func identifierFor(cfg race.RaceConfig, year int) (race.Identifier, error) {
	id, ok := cfg.IdentifierFor(year)
	if !ok {
		return id, fmt.Errorf("%w: %s %d", ErrNotSupportedForYear, cfg.Name, year)
	}
	return id, nil
}

func missingID(cfg race.RaceConfig, year int, field string) error {
	return fmt.Errorf("%w: %s %d has no %s", ErrNotSupportedForYear, cfg.Name, year, field)
}

func parseErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
