// Package matcher decides whether a broker site lists the searched person.
//
// # Architecture
//
// Every broker is served by a Matcher. Known brokers have a specialized
// matcher that knows the site's search URL and a heuristic for reading the
// result page. Any other domain is served by the Generic matcher, which
// guesses search URLs, probes them in order and keeps the first page that
// links to profile-looking pages. The SearchEngine matcher is an optional
// replacement fallback that asks DuckDuckGo for site-restricted results.
//
// Registry maps a domain to a Handler. Specialized handlers come from an
// explicit table built once; unknown domains get a Generic handler bound to
// the domain on first lookup.
//
// # Heuristics
//
// Matching is deliberately loose: a page "matches" when the first and last
// name tokens appear in its text (or anchor text, or URL path, depending on
// the site). Single-token names only require the first token. Tokens are
// folded with model.FoldText so accents do not prevent a match. The result is
// a signal for a human to review, never proof of a listing.
//
// # Failure
//
// Matchers either return a result or an error. Guard wraps a Search call so
// that errors and panics become a not-found result whose notes carry the
// cause; the orchestrator relies on this to isolate brokers from each other.
package matcher
