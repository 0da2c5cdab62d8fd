// Package fetch is the HTTP layer every matcher goes through.
//
// A Fetcher sends GET requests with browser-like headers, retries transient
// failures with a linear backoff and decodes the body to UTF-8. Failures can
// be surfaced as a tagged Response instead of an error so that scrapers can
// treat an unreachable broker as "no data" without special casing.
//
// # Politeness
//
// Two mechanisms keep the tool from hammering a broker:
//   - a per-host token bucket (golang.org/x/time/rate) applied before each
//     request attempt
//   - a DelayPolicy that callers invoke after each broker request to wait a
//     random interval
//
// Both wait through a Sleeper or a context so tests never block on the wall
// clock.
package fetch
