package runner

import (
	"sort"

	"github.com/antzucaro/matchr"
	"github.com/pfrederiksen/race-results/internal/result"
)

// DefaultSimilarity is the Jaro-Winkler score two equally long names need
// before one is offered as a near spelling of the other
const DefaultSimilarity = 0.94

// Matcher scores result rows against a runner name
type Matcher struct {
	// Similarity is the Jaro-Winkler threshold for Suggest. It never pairs
	// a row in Match. Zero or negative disables suggestions.
	Similarity float64
}

// Default is the matcher used by the package-level helpers
var Default = Matcher{Similarity: DefaultSimilarity}

// Match ranks candidates against a runner name with the default matcher
func Match(query string, candidates []result.CandidateResult) []result.MatchResult {
	return Default.Match(query, candidates)
}

// Matches reports whether a single displayed name pairs with the query
func Matches(query, name string) bool {
	return Default.Matches(query, name)
}

// Matches reports whether a single displayed name pairs with the query by
// exact name or by tokens
func (m Matcher) Matches(query, name string) bool {
	q, ok := Clean(query)
	if !ok {
		return false
	}
	n, ok := Clean(name)
	if !ok {
		return false
	}
	_, ok = compare(Key(q), Key(n))
	return ok
}

// Match returns the rows tied for the best match kind. A single row is
// ConfidenceExact, several rows are all ConfidenceAmbiguous, and an empty
// slice means not found. Rows with unusable names are skipped, as are repeated
// rows carrying the same source id.
func (m Matcher) Match(query string, candidates []result.CandidateResult) []result.MatchResult {
	q, ok := Clean(query)
	if !ok {
		return nil
	}
	qKey := Key(q)

	seen := make(map[string]bool)
	bestRank := 0
	var best []result.MatchResult

	for _, c := range candidates {
		name, ok := Clean(c.Name)
		if !ok {
			continue
		}

		if c.SourceID != "" {
			id := string(c.Platform) + "|" + c.SourceID
			if seen[id] {
				continue
			}
			seen[id] = true
		}

		kind, ok := compare(qKey, Key(name))
		if !ok {
			continue
		}

		rank := kindRank[kind]
		if rank < bestRank {
			continue
		}
		if rank > bestRank {
			bestRank = rank
			best = best[:0]
		}

		mr := result.Normalize(c)
		mr.Name = name
		mr.Kind = kind
		best = append(best, mr)
	}

	if len(best) == 0 {
		return nil
	}

	confidence := result.ConfidenceExact
	if len(best) > 1 {
		confidence = result.ConfidenceAmbiguous
	}
	for i := range best {
		best[i].Confidence = confidence
	}

	sort.SliceStable(best, func(i, j int) bool {
		return placeBefore(best[i].Place, best[j].Place)
	})

	return best
}

var kindRank = map[result.MatchKind]int{
	result.KindExactName: 2,
	result.KindToken:     1,
}

// Suggest returns the distinct names of rows that are near spellings of the
// query without pairing under any match rule, best score first. The names are
// hints for a person reviewing a not-found lookup.
func (m Matcher) Suggest(query string, candidates []result.CandidateResult) []string {
	if m.Similarity <= 0 {
		return nil
	}
	q, ok := Clean(query)
	if !ok {
		return nil
	}
	qKey := Key(q)
	qLen := len(tokens(qKey))
	if qLen < 2 {
		return nil
	}

	type scored struct {
		name  string
		score float64
	}
	seen := make(map[string]bool)
	var hits []scored
	for _, c := range candidates {
		name, ok := Clean(c.Name)
		if !ok {
			continue
		}
		key := Key(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		if _, paired := compare(qKey, key); paired || len(tokens(key)) != qLen {
			continue
		}
		if score := matchr.JaroWinkler(qKey, key, false); score >= m.Similarity {
			hits = append(hits, scored{name: name, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.name
	}
	return names
}

// compare pairs two comparison keys under the strongest rule that applies
func compare(query, name string) (result.MatchKind, bool) {
	if query == "" || name == "" {
		return "", false
	}
	if query == name {
		return result.KindExactName, true
	}

	qTokens := tokens(query)
	nTokens := tokens(name)

	if tokenMatch(qTokens, nTokens) {
		return result.KindToken, true
	}
	return "", false
}

// tokenMatch holds when the smaller token set is contained in the larger and
// at least a first and last name are shared. This covers reordering
// ("Samp Jennifer"), "Last, First" listings and an extra middle name.
func tokenMatch(a, b []string) bool {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	if len(small) < 2 {
		return false
	}

	counts := make(map[string]int, len(large))
	for _, t := range large {
		counts[t]++
	}
	for _, t := range small {
		if counts[t] == 0 {
			return false
		}
		counts[t]--
	}
	return true
}

// placeBefore orders known places ascending ahead of unknown ones
func placeBefore(a, b *int) bool {
	switch {
	case a != nil && b != nil:
		return *a < *b
	case a != nil:
		return true
	default:
		return false
	}
}
