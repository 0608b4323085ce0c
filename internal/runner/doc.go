// Package runner cleans free-text runner names and matches them against scraped
// result rows.
//
// Names typed into storefront orders carry noise ("John Doe No Time"), stray
// whitespace and inconsistent casing; platforms list the same person as
// "Samp, Jennifer" or "Jennifer L Samp". Clean produces the display form, a
// comparison key folds case and diacritics, and Match ranks rows by the best
// rule that pairs them with the query. When more than one row ties at the top
// every tied row is returned as ambiguous; picking one is left to a human.
package runner
