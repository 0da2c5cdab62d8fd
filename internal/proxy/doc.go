// Package proxy builds the HTTP client that carries broker traffic.
//
// Three transports are supported:
//   - direct connections (the default)
//   - an external SOCKS5 proxy given as host:port
//   - an embedded Tor daemon started through tornago
//
// Open selects the transport from Settings and returns a Session whose
// Close releases any daemon it started. Components that need an
// *http.Client receive Session.HTTPClient() rather than reaching for
// global state.
package proxy
