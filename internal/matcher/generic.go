package matcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/brokerscan/internal/fetch"
	"github.com/nao1215/brokerscan/internal/model"
)

// Search paths and query keys commonly used by people-search sites.
var (
	genericSearchPaths = []string{"/search", "/people-search", "/find", "/name", "/"}
	genericQueryKeys   = []string{"q", "name", "fullName", "search", "query", "term", "s"}
	genericLocationKey = []string{"location", "citystatezip", "city_state", "where"}
	genericSlugPrefix  = []string{"/name/", "/people/", "/person/", "/p/", "/"}
)

// Candidates lists the URLs the generic matcher probes for domain, most
// specific first. Query-style URLs come first: every search path paired with
// every query key, with the location under each alias before the bare
// variant. Path-style URLs follow: each slug template with the city-state
// suffix before the bare slug. Duplicates are removed.
func Candidates(domain, fullName, city, state string) []string {
	base := "https://" + strings.TrimSuffix(domain, "/")
	name := strings.Join(strings.Fields(fullName), " ")
	location := locationHint(city, state)

	seen := make(map[string]bool)
	out := make([]string, 0, 64)
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	if name != "" {
		for _, path := range genericSearchPaths {
			for _, key := range genericQueryKeys {
				q := base + path + "?" + key + "=" + url.QueryEscape(name)
				if location != "" {
					for _, lk := range genericLocationKey {
						add(q + "&" + lk + "=" + url.QueryEscape(location))
					}
				}
				add(q)
			}
		}
	}

	slug := slugify(name)
	if slug != "" {
		locSlug := slugify(strings.TrimSpace(city + " " + state))
		for _, prefix := range genericSlugPrefix {
			p := base + prefix + url.PathEscape(slug)
			if locSlug != "" {
				add(p + "/" + url.PathEscape(locSlug))
			}
			add(p)
		}
	}

	return out
}

// locationHint is "City, ST", "City" or "ST".
func locationHint(city, state string) string {
	city, state = strings.TrimSpace(city), strings.TrimSpace(state)
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	default:
		return state
	}
}

// slugify lower-cases s and joins its words with hyphens.
func slugify(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "-"))
}

// Generic probes guessed search URLs of a domain that has no specialized
// matcher.
type Generic struct {
	domain string
	deps   Deps
}

// NewGeneric returns a generic matcher bound to domain.
func NewGeneric(domain string, deps Deps) *Generic {
	return &Generic{domain: domain, deps: deps}
}

// Name implements Matcher.
func (g *Generic) Name() string { return g.domain }

// Domain returns the bound domain.
func (g *Generic) Domain() string { return g.domain }

// Search implements Matcher. The result is found when a candidate page
// links to at least one profile-looking page; otherwise it carries no URL.
func (g *Generic) Search(ctx context.Context, q Query) (*model.BrokerResult, error) {
	if q.Profile == nil {
		return nil, ErrNilProfile
	}

	name := q.Site.Name()
	if name == "" {
		name = g.domain
	}
	result := &model.BrokerResult{Broker: name}

	urls, err := g.SearchDomain(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(urls) > 0 {
		result.Found = true
		result.URL = urls[0]
		result.URLs = urls
	}

	g.deps.pause(ctx)
	return result, nil
}

// SearchDomain probes Candidates in order and returns the links of the
// first page that answers below 400 and yields at least one link. Fetch
// failures move on to the next candidate; only context cancellation is
// returned as an error.
func (g *Generic) SearchDomain(ctx context.Context, q Query) ([]string, error) {
	if q.Profile == nil {
		return nil, ErrNilProfile
	}
	p := q.Profile
	first, last := p.MatchTokens()
	logger := g.deps.logger()

	for _, candidate := range Candidates(g.domain, p.Name(), p.City(), p.State()) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := g.deps.Fetcher.Get(ctx, candidate, fetch.Options{
			Timeout:      q.timeout(),
			Attempts:     1,
			AllowFailure: true,
		})
		if err != nil || !resp.HasData() || resp.StatusCode >= http.StatusBadRequest {
			continue
		}

		base, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		links := extractLinks(resp.Body, base, g.domain, first, last, q.limit())
		if len(links) > 0 {
			logger.Debug("generic candidate matched", "domain", g.domain, "candidate", candidate, "links", len(links))
			return links, nil
		}
	}
	return nil, nil
}
