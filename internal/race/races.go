package race

import (
	"time"

	"github.com/pfrederiksen/race-results/internal/result"
)

// Builtin returns the races the storefront sells products for. Each call
// builds fresh values so callers cannot alias the table.
func Builtin() []RaceConfig {
	return []RaceConfig{
		// Austin - mid-February, results on MyChipTime
		{
			Platform:                result.PlatformMyChipTime,
			Name:                    "Ascension Seton Austin Marathon",
			Tag:                     "austin",
			Aliases:                 []string{"Ascension Seton Austin Marathon", "Austin Marathon", "Austin Half Marathon"},
			Keywords:                []string{"austin"},
			KeywordRequiresMarathon: true,
			EventTypes:              []EventType{EventMarathon, EventHalf, Event5K},
			Priority:                10,
			DateRule:                NthWeekday(time.February, time.Sunday, 3),
			Identifiers: map[int]Identifier{
				2024: {EventID: "16012", SubEvents: []SubEvent{{EventMarathon, "16012"}, {EventHalf, "16013"}}},
				2025: {EventID: "17650", SubEvents: []SubEvent{{EventMarathon, "17650"}, {EventHalf, "17651"}}},
				2026: {EventID: "19011", SubEvents: []SubEvent{{EventMarathon, "19011"}, {EventHalf, "19012"}}},
			},
		},

		// New York - first Sunday of November, NYRR finisher API
		{
			Platform:                result.PlatformNYRR,
			Name:                    "TCS New York City Marathon",
			Tag:                     "nyc",
			Aliases:                 []string{"TCS New York City Marathon", "New York City Marathon", "NYC Marathon"},
			Keywords:                []string{"new york", "nyc"},
			KeywordRequiresMarathon: true,
			EventTypes:              []EventType{EventMarathon},
			Priority:                20,
			DateRule:                NthWeekday(time.November, time.Sunday, 1),
			Identifiers: map[int]Identifier{
				2022: {Code: "M2022"},
				2023: {Code: "M2023"},
				2024: {Code: "M2024"},
				2025: {Code: "M2025"},
			},
		},

		// Chicago - second Sunday of October, Mika Timing
		{
			Platform:                result.PlatformMika,
			Name:                    "Bank of America Chicago Marathon",
			Tag:                     "chicago",
			Aliases:                 []string{"Bank of America Chicago Marathon", "Chicago Marathon"},
			Keywords:                []string{"chicago"},
			KeywordRequiresMarathon: true,
			EventTypes:              []EventType{EventMarathon},
			Priority:                30,
			DateRule:                NthWeekday(time.October, time.Sunday, 2),
			Identifiers: map[int]Identifier{
				2023: {BaseURL: "https://results.chicagomarathon.com/2023/", SubEvents: []SubEvent{{EventMarathon, "MAR_9TGG963812D"}}},
				2024: {BaseURL: "https://results.chicagomarathon.com/2024/", SubEvents: []SubEvent{{EventMarathon, "MAR_9TGG9638119"}}},
				2025: {BaseURL: "https://results.chicagomarathon.com/2025/", SubEvents: []SubEvent{{EventMarathon, "MAR_9TGG96382D1"}}},
			},
		},

		// Twin Cities - first Sunday of October, client-rendered MyRace.ai tables
		{
			Platform:                result.PlatformMyRace,
			Name:                    "Medtronic Twin Cities Marathon",
			Tag:                     "tcm",
			Aliases:                 []string{"Medtronic Twin Cities Marathon", "Twin Cities Marathon"},
			Keywords:                []string{"twin cities"},
			KeywordRequiresMarathon: true,
			EventTypes:              []EventType{EventMarathon, Event10K},
			Priority:                40,
			DateRule:                NthWeekday(time.October, time.Sunday, 1),
			Identifiers: map[int]Identifier{
				2024: {EventID: "tcm-2024"},
				2025: {EventID: "tcm-2025"},
			},
		},

		// Houston - third Sunday of January, RaceRoster with separate sub-events
		{
			Platform:                result.PlatformRaceRoster,
			Name:                    "Chevron Houston Marathon",
			Tag:                     "houston",
			Aliases:                 []string{"Chevron Houston Marathon", "Houston Marathon", "Aramco Houston Half Marathon"},
			Keywords:                []string{"houston"},
			KeywordRequiresMarathon: true,
			EventTypes:              []EventType{EventMarathon, EventHalf},
			Priority:                50,
			DateRule:                NthWeekday(time.January, time.Sunday, 3),
			Identifiers: map[int]Identifier{
				2025: {EventID: "88421", SubEvents: []SubEvent{{EventMarathon, "224561"}, {EventHalf, "224562"}}},
				2026: {EventID: "97310", SubEvents: []SubEvent{{EventMarathon, "249870"}, {EventHalf, "249871"}}},
			},
		},

		// Philadelphia - Sunday before Thanksgiving, RunSignUp
		{
			Platform:                result.PlatformRunSignUp,
			Name:                    "Philadelphia Marathon",
			Tag:                     "philly",
			Aliases:                 []string{"Philadelphia Marathon", "Philly Marathon", "Dietz & Watson Philadelphia Marathon"},
			Keywords:                []string{"philadelphia", "philly"},
			KeywordRequiresMarathon: true,
			EventTypes:              []EventType{EventMarathon, EventHalf},
			Priority:                60,
			DateRule:                WeekdayBefore(NthWeekday(time.November, time.Thursday, 4), time.Sunday),
			Identifiers: map[int]Identifier{
				2023: {RaceID: "142011", SubEvents: []SubEvent{{EventMarathon, "612001"}, {EventHalf, "612002"}}},
				2024: {RaceID: "142011", SubEvents: []SubEvent{{EventMarathon, "701155"}, {EventHalf, "701156"}}},
				2025: {RaceID: "142011", SubEvents: []SubEvent{{EventMarathon, "789340"}, {EventHalf, "789341"}}},
			},
		},

		// Marine Corps - last Sunday of October, RTRT ids follow MCM<year>
		{
			Platform:   result.PlatformRTRT,
			Name:       "Marine Corps Marathon",
			Tag:        "mcm",
			Aliases:    []string{"Marine Corps Marathon", "MCM"},
			Keywords:   []string{"marine corps"},
			EventTypes: []EventType{EventMarathon, Event10K},
			Priority:   70,
			DateRule:   LastWeekday(time.October, time.Sunday),
			Pattern:    &IdentifierPattern{EventID: "MCM{year}", FirstYear: 2019, LastYear: 2025},
		},
	}
}

// DefaultRegistry returns a registry over the built-in races
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(Builtin()...)
}
