// Package result provides the raw and canonical race result records and the
// normalizer that maps one into the other.
//
// Every results platform reports a finisher differently: some return JSON with
// separate first/last names and "chip_time" strings, others render an HTML table
// with "3h45m12s" style times and ordinal places. Adapters emit CandidateResult
// rows as-is; Normalize turns each into a MatchResult with a parsed duration and
// numeric places while keeping the raw text so nothing is dropped silently.
package result
