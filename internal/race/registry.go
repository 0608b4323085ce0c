package race

import (
	"fmt"
	"sort"
	"strings"
)

// Registry resolves race names against a fixed, ordered set of configs.
// It is read-only after construction and safe for concurrent use. Configs go
// in and come out as copies, so callers may modify what they hold.
type Registry struct {
	races []RaceConfig
}

// NewRegistry validates configs and orders them by Priority, keeping
// registration order for equal priorities. Two races claiming the same tag,
// alias or keyword is an error: overlaps are flagged here instead of being
// settled silently at lookup time.
func NewRegistry(configs ...RaceConfig) (*Registry, error) {
	owners := make(map[string]string)

	claim := func(kind, value, race string) error {
		key := kind + ":" + strings.ToLower(strings.TrimSpace(value))
		if prev, ok := owners[key]; ok && prev != race {
			return fmt.Errorf("%s %q claimed by both %q and %q", kind, value, prev, race)
		}
		owners[key] = race
		return nil
	}

	for _, c := range configs {
		if err := validate(c); err != nil {
			return nil, err
		}

		// Tags and aliases share one namespace since both resolve by exact match
		if err := claim("name", c.Tag, c.Name); err != nil {
			return nil, err
		}
		for _, a := range c.Aliases {
			if err := claim("name", a, c.Name); err != nil {
				return nil, err
			}
		}
		for _, k := range c.Keywords {
			if err := claim("keyword", k, c.Name); err != nil {
				return nil, err
			}
		}
	}

	if err := checkAliasContainment(configs); err != nil {
		return nil, err
	}

	races := make([]RaceConfig, len(configs))
	for i, c := range configs {
		races[i] = c.clone()
	}
	sort.SliceStable(races, func(i, j int) bool {
		return races[i].Priority < races[j].Priority
	})

	return &Registry{races: races}, nil
}

// checkAliasContainment rejects an alias that contains another race's alias,
// since either race could then win the containment step
func checkAliasContainment(configs []RaceConfig) error {
	for i, a := range configs {
		for j, b := range configs {
			if i == j || a.Name == b.Name {
				continue
			}
			for _, outer := range a.Aliases {
				for _, inner := range b.Aliases {
					if strings.Contains(strings.ToLower(outer), strings.ToLower(inner)) {
						return fmt.Errorf("alias %q of %q contains alias %q of %q", outer, a.Name, inner, b.Name)
					}
				}
			}
		}
	}
	return nil
}

func validate(c RaceConfig) error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("race config without a name")
	case strings.TrimSpace(c.Tag) == "":
		return fmt.Errorf("race %q has no tag", c.Name)
	case c.Platform == "":
		return fmt.Errorf("race %q has no platform", c.Name)
	case c.DateRule == nil:
		return fmt.Errorf("race %q has no date rule", c.Name)
	}
	if c.Pattern != nil && c.Pattern.FirstYear > c.Pattern.LastYear {
		return fmt.Errorf("race %q has an empty identifier pattern range", c.Name)
	}
	return nil
}

// Find resolves a race by tag or by name. Steps are tried in order and the
// first step with a hit wins:
//
//  1. tag equals the config tag (case-insensitive)
//  2. name equals an alias (case-insensitive)
//  3. name contains an alias anywhere (case-insensitive)
//  4. name contains a keyword, plus "marathon" for configs that require it
//
// Find returns false when nothing matches.
func (r *Registry) Find(name, tag string) (RaceConfig, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	lower := strings.ToLower(strings.Join(strings.Fields(name), " "))

	if tag != "" {
		for _, c := range r.races {
			if strings.ToLower(c.Tag) == tag {
				return c.clone(), true
			}
		}
	}

	if lower == "" {
		return RaceConfig{}, false
	}

	for _, c := range r.races {
		for _, a := range c.Aliases {
			if strings.ToLower(a) == lower {
				return c.clone(), true
			}
		}
	}

	for _, c := range r.races {
		for _, a := range c.Aliases {
			if strings.Contains(lower, strings.ToLower(a)) {
				return c.clone(), true
			}
		}
	}

	hasMarathon := strings.Contains(lower, "marathon")
	for _, c := range r.races {
		if c.KeywordRequiresMarathon && !hasMarathon {
			continue
		}
		for _, k := range c.Keywords {
			if strings.Contains(lower, strings.ToLower(k)) {
				return c.clone(), true
			}
		}
	}

	return RaceConfig{}, false
}

// ByTag returns the race with the given tag
func (r *Registry) ByTag(tag string) (RaceConfig, bool) {
	return r.Find("", tag)
}

// All returns the registered configs in resolution order
func (r *Registry) All() []RaceConfig {
	out := make([]RaceConfig, len(r.races))
	for i, c := range r.races {
		out[i] = c.clone()
	}
	return out
}
