// Package cli implements the command-line interface for race-results.
//
// The cli package provides the Cobra-based CLI with commands for single runner
// lookups, listing supported races, enriching a file of orders and correcting
// stored orders by hand. Results are written as text or JSON; the exit code
// tells scripts whether a person needs to review the outcome.
package cli
