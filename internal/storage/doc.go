// Package storage provides JSON-based persistence for the order book.
//
// The book lives in a single orders.json file inside the data directory and
// holds every imported order with its overrides, lookup status and result.
// The default storage location is ~/.local/share/race-results/.
package storage
