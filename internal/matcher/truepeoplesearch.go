package matcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/brokerscan/internal/fetch"
	"github.com/nao1215/brokerscan/internal/model"
)

const (
	truePeopleSearchBase   = "https://www.truepeoplesearch.com"
	truePeopleSearchDomain = "truepeoplesearch.com"
)

// truePeopleSearch returns every result-card link that mentions the name.
type truePeopleSearch struct {
	deps Deps
}

// NewTruePeopleSearch returns the TruePeopleSearch matcher.
// It is the only specialized matcher with several URLs per result.
func NewTruePeopleSearch(deps Deps) Matcher {
	return &truePeopleSearch{deps: deps}
}

// Name implements Matcher.
func (m *truePeopleSearch) Name() string { return "TruePeopleSearch" }

// Search implements Matcher.
func (m *truePeopleSearch) Search(ctx context.Context, q Query) (*model.BrokerResult, error) {
	if q.Profile == nil {
		return nil, ErrNilProfile
	}

	target := truePeopleSearchURL(q.Profile)
	result := &model.BrokerResult{
		Broker: m.Name(),
		URL:    target,
		Notes:  "Opt-out: " + TruePeopleSearchOptOut,
	}

	resp, err := m.deps.Fetcher.Get(ctx, target, fetch.Options{
		Timeout:  q.timeout(),
		Attempts: 1,
	})
	if err != nil {
		return nil, err
	}

	// A 404 results page means no listing; its body is never scanned.
	if resp.HasData() && resp.StatusCode != http.StatusNotFound {
		pg, err := parsePage(resp.Body)
		if err == nil {
			first, last := q.Profile.MatchTokens()
			urls := truePeopleSearchLinks(pg, first, last, q.limit())
			if len(urls) > 0 {
				result.Found = true
				result.URL = urls[0]
				result.URLs = urls
				result.Title = pg.title()
			}
		}
	}

	m.deps.pause(ctx)
	return result, nil
}

// truePeopleSearchURL builds /results?name=...&citystatezip=... where the
// location is "City, ST", or the state alone.
func truePeopleSearchURL(p *model.ClientProfile) string {
	params := url.Values{}
	params.Set("name", p.Name())
	switch {
	case p.City() != "" && p.State() != "":
		params.Set("citystatezip", p.City()+", "+p.State())
	case p.State() != "":
		params.Set("citystatezip", p.State())
	}
	return truePeopleSearchBase + "/results?" + params.Encode()
}

// truePeopleSearchLinks collects /details and /result(s) links on the
// TruePeopleSearch host whose path, query or anchor text carries both name
// tokens. Hrefs are resolved against the site root, so every URL returned
// is absolute and escaped.
func truePeopleSearchLinks(pg *page, first, last string, limit int) []string {
	base, err := url.Parse(truePeopleSearchBase + "/")
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	urls := make([]string, 0, limit)

	pg.anchors(func(href, text string) bool {
		if href == "" {
			return true
		}
		resolved, ok := resolveHref(base, href)
		if !ok || !sameSite(resolved.Hostname(), truePeopleSearchDomain, "") {
			return true
		}
		path := strings.ToLower(resolved.Path)
		if !strings.Contains(path, "/details") && !strings.Contains(path, "/result") {
			return true
		}
		if first != "" && last != "" {
			query, err := url.QueryUnescape(resolved.RawQuery)
			if err != nil {
				query = resolved.RawQuery
			}
			target := model.FoldText(resolved.Path + "?" + query)
			anchor := model.FoldText(text)
			if !containsName(target, first, last) && !containsName(anchor, first, last) {
				return true
			}
		}
		link := resolved.String()
		if seen[link] {
			return true
		}
		seen[link] = true
		urls = append(urls, link)
		return len(urls) < limit
	})

	return urls
}
