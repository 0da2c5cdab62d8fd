package matcher

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/brokerscan/internal/fetch"
	"github.com/nao1215/brokerscan/internal/model"
)

// DuckDuckGoHTML is the JavaScript-free DuckDuckGo endpoint.
const DuckDuckGoHTML = "https://html.duckduckgo.com/html/"

// duckResultSelector matches result title, URL and snippet anchors.
const duckResultSelector = "a.result__a, a.result__url, a.result__snippet"

// SearchEngine looks for pages of a domain through a site-restricted web
// search instead of probing the broker itself.
type SearchEngine struct {
	domain   string
	endpoint string
	deps     Deps
}

// SearchEngineOption configures a SearchEngine.
type SearchEngineOption func(*SearchEngine)

// WithEndpoint overrides the search endpoint.
func WithEndpoint(endpoint string) SearchEngineOption {
	return func(s *SearchEngine) {
		s.endpoint = endpoint
	}
}

// NewSearchEngine returns a search-engine matcher bound to domain.
func NewSearchEngine(domain string, deps Deps, opts ...SearchEngineOption) *SearchEngine {
	s := &SearchEngine{domain: domain, endpoint: DuckDuckGoHTML, deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Matcher.
func (s *SearchEngine) Name() string { return s.domain }

// SearchQuery builds `"<name>" "<city>" "<state>" site:<domain>`.
func SearchQuery(domain string, p *model.ClientProfile) string {
	parts := make([]string, 0, 4)
	if p.Name() != "" {
		parts = append(parts, `"`+p.Name()+`"`)
	}
	if p.City() != "" {
		parts = append(parts, `"`+p.City()+`"`)
	}
	if p.State() != "" {
		parts = append(parts, `"`+p.State()+`"`)
	}
	parts = append(parts, "site:"+domain)
	return strings.Join(parts, " ")
}

// Search implements Matcher. The first result anchor mentioning the domain
// in its href or text is reported.
func (s *SearchEngine) Search(ctx context.Context, q Query) (*model.BrokerResult, error) {
	if q.Profile == nil {
		return nil, ErrNilProfile
	}

	target := s.endpoint + "?q=" + url.QueryEscape(SearchQuery(s.domain, q.Profile)) + "&kp=-2"
	name := q.Site.Name()
	if name == "" {
		name = s.domain
	}
	result := &model.BrokerResult{Broker: name, URL: target}
	if q.Site.OptOutURL != "" {
		result.Notes = "Opt-out: " + q.Site.OptOutURL
	}

	resp, err := s.deps.Fetcher.Get(ctx, target, fetch.Options{
		Timeout:      q.timeout(),
		Attempts:     2,
		AllowFailure: true,
	})
	if err != nil {
		return nil, err
	}

	if resp.HasData() {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
		if err == nil {
			host := strings.ToLower(strings.SplitN(s.domain, "/", 2)[0])
			doc.Find(duckResultSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				href, _ := sel.Attr("href")
				href = unwrapRedirect(href)
				text := collapse(sel.Text())
				if href == "" || !strings.Contains(strings.ToLower(href+" "+text), host) {
					return true
				}
				result.Found = true
				result.URL = href
				result.Title = truncate(text, titleMaxRunes)
				return false
			})
		}
	}

	s.deps.pause(ctx)
	return result, nil
}

// unwrapRedirect returns the target of a DuckDuckGo /l/?uddg= redirect link.
func unwrapRedirect(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/?") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
