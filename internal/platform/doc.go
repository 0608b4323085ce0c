// Package platform fetches raw result rows from third-party results platforms.
//
// Each platform gets one Adapter: RunSignUp, RaceRoster, NYRR and RTRT expose
// JSON APIs reached through a shared resty client; Mika Timing and MyChipTime
// render HTML server-side and are parsed with goquery; MyRace.ai renders its
// results table in the browser and is read through a headless Chrome session.
//
// Adapters make one logical request per call and never retry. Failures are
// reported with three sentinel errors: ErrNetwork for transport problems and
// timeouts (safe to retry), ErrParse when a platform answers with an
// unexpected shape, and ErrNotSupportedForYear when the race has no
// identifier for the requested year. Individual malformed rows are dropped.
package platform
