// Package order holds storefront orders waiting for a race result.
//
// Orders arrive from the storefront import as plain JSON. Each one is kept in a
// Book as a Record that adds manual overrides, the lookup status, the matched
// result and a short change log. Re-importing an order whose runner, race or
// year changed sends it back to pending.
package order
