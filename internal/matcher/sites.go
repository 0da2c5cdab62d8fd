package matcher

import (
	"context"
	"net/url"
	"strings"

	"github.com/nao1215/brokerscan/internal/fetch"
	"github.com/nao1215/brokerscan/internal/model"
)

// Opt-out pages of the specialized brokers.
const (
	SpokeoOptOut           = "https://www.spokeo.com/opt_out"
	WhitepagesOptOut       = "https://www.whitepages.com/suppression_requests"
	TruePeopleSearchOptOut = "https://www.truepeoplesearch.com/removal"
	FastPeopleSearchOptOut = "https://www.fastpeoplesearch.com/removal"
	RadarisOptOut          = "https://radaris.com/page/how-to-remove"
	USPhoneBookOptOut      = "https://www.usphonebook.com/opt-out"
	SearchPeopleFreeOptOut = "https://www.searchpeoplefree.com/opt-out"
	TruthFinderOptOut      = "https://www.truthfinder.com/opt-out/"
)

// evidence is what a page heuristic extracted.
type evidence struct {
	found   bool
	title   string
	snippet string
}

// pageMatcher fetches one search URL and applies a heuristic to the page.
// The six page-scraping brokers differ only in their URL shape, heuristic
// and failure tolerance.
type pageMatcher struct {
	name         string
	notes        string
	attempts     int
	allowFailure bool
	buildURL     func(p *model.ClientProfile) string
	match        func(pg *page, p *model.ClientProfile) evidence
	deps         Deps
}

// Name implements Matcher.
func (m *pageMatcher) Name() string { return m.name }

// Search implements Matcher.
func (m *pageMatcher) Search(ctx context.Context, q Query) (*model.BrokerResult, error) {
	if q.Profile == nil {
		return nil, ErrNilProfile
	}

	target := m.buildURL(q.Profile)
	result := &model.BrokerResult{
		Broker: m.name,
		URL:    target,
		Notes:  m.notes,
	}

	resp, err := m.deps.Fetcher.Get(ctx, target, fetch.Options{
		Timeout:      q.timeout(),
		Attempts:     q.attempts(m.attempts),
		AllowFailure: m.allowFailure,
	})
	if err != nil {
		return nil, err
	}

	if resp.HasData() {
		pg, err := parsePage(resp.Body)
		if err != nil {
			m.deps.logger().Debug("unparseable page", "broker", m.name, "error", err)
		} else {
			ev := m.match(pg, q.Profile)
			result.Found = ev.found
			result.Title = ev.title
			result.Snippet = ev.snippet
		}
	}

	m.deps.pause(ctx)
	return result, nil
}

// NewSpokeo returns the Spokeo matcher. A match is an anchor whose text
// contains both name tokens. Fetch failures are errors.
func NewSpokeo(deps Deps) Matcher {
	return &pageMatcher{
		name:     "Spokeo",
		notes:    "If found, submit opt-out: " + SpokeoOptOut,
		attempts: fetch.DefaultAttempts,
		deps:     deps,
		buildURL: func(p *model.ClientProfile) string {
			u := "https://www.spokeo.com/search?q=" + url.QueryEscape(p.Name())
			switch {
			case p.City() != "" && p.State() != "":
				u += url.QueryEscape(" " + p.City() + " " + p.State())
			case p.City() != "":
				u += url.QueryEscape(" " + p.City())
			}
			return u
		},
		match: func(pg *page, p *model.ClientProfile) evidence {
			first, last := p.MatchTokens()
			var ev evidence
			pg.anchors(func(_, text string) bool {
				if containsName(model.FoldText(text), first, last) {
					ev.found = true
					ev.title = truncate(text, 120)
					ev.snippet = ev.title
					return false
				}
				return true
			})
			return ev
		},
	}
}

// NewWhitepages returns the Whitepages matcher. Only the surname (or the
// single token) has to appear in the page text. Fetch failures are errors.
func NewWhitepages(deps Deps) Matcher {
	return &pageMatcher{
		name:     "Whitepages",
		notes:    "Opt-out: " + WhitepagesOptOut,
		attempts: fetch.DefaultAttempts,
		deps:     deps,
		buildURL: func(p *model.ClientProfile) string {
			u := "https://www.whitepages.com/name/" + url.QueryEscape(p.Name())
			if p.City() != "" && p.State() != "" {
				u += "/" + url.QueryEscape(p.City()) + "/" + url.QueryEscape(p.State())
			}
			return u
		},
		match: func(pg *page, p *model.ClientProfile) evidence {
			first, last := p.MatchTokens()
			token := last
			if token == "" {
				token = first
			}
			return evidence{found: token != "" && strings.Contains(pg.text(), token)}
		},
	}
}

// NewFastPeopleSearch returns the FastPeopleSearch matcher.
func NewFastPeopleSearch(deps Deps) Matcher {
	return &pageMatcher{
		name:         "FastPeopleSearch",
		notes:        "Opt-out: " + FastPeopleSearchOptOut,
		attempts:     2,
		allowFailure: true,
		deps:         deps,
		buildURL: func(p *model.ClientProfile) string {
			u := "https://www.fastpeoplesearch.com/name/" + url.QueryEscape(strings.Join(p.NameTokens(), "-"))
			if p.City() != "" && p.State() != "" {
				u += "/" + url.QueryEscape(p.City()) + "-" + url.QueryEscape(p.State())
			}
			return u
		},
		match: textMatch,
	}
}

// NewRadaris returns the Radaris matcher.
func NewRadaris(deps Deps) Matcher {
	return &pageMatcher{
		name:         "Radaris",
		notes:        "Opt-out: " + RadarisOptOut,
		attempts:     2,
		allowFailure: true,
		deps:         deps,
		buildURL: func(p *model.ClientProfile) string {
			return "https://radaris.com/p/" + url.QueryEscape(strings.Join(p.NameTokens(), "-")) +
				"?search=" + url.QueryEscape(searchTerm(p))
		},
		match: textMatch,
	}
}

// NewUSPhoneBook returns the USPhoneBook matcher.
func NewUSPhoneBook(deps Deps) Matcher {
	return &pageMatcher{
		name:         "USPhoneBook",
		notes:        "Opt-out: " + USPhoneBookOptOut,
		attempts:     2,
		allowFailure: true,
		deps:         deps,
		buildURL: func(p *model.ClientProfile) string {
			return "https://www.usphonebook.com/search?term=" + url.QueryEscape(searchTerm(p))
		},
		match: textMatch,
	}
}

// NewSearchPeopleFree returns the SearchPeopleFree matcher.
func NewSearchPeopleFree(deps Deps) Matcher {
	return &pageMatcher{
		name:         "SearchPeopleFree",
		notes:        "Opt-out: " + SearchPeopleFreeOptOut,
		attempts:     2,
		allowFailure: true,
		deps:         deps,
		buildURL: func(p *model.ClientProfile) string {
			u := "https://www.searchpeoplefree.com/find?firstname=" + url.QueryEscape(p.FirstName()) +
				"&lastname=" + url.QueryEscape(p.LastName())
			if p.State() != "" {
				u += "&state=" + url.QueryEscape(p.State())
			}
			return u
		},
		match: textMatch,
	}
}

// textMatch matches when the page text contains the name tokens and
// reports the page heading as title.
func textMatch(pg *page, p *model.ClientProfile) evidence {
	first, last := p.MatchTokens()
	return evidence{
		found: containsName(pg.text(), first, last),
		title: pg.title(),
	}
}

// searchTerm is "name[ city][ state]".
func searchTerm(p *model.ClientProfile) string {
	parts := []string{p.Name()}
	if p.City() != "" {
		parts = append(parts, p.City())
	}
	if p.State() != "" {
		parts = append(parts, p.State())
	}
	return strings.Join(parts, " ")
}

// truthFinder never fetches: its search sits behind a paywall, so the
// result always asks for a manual check.
type truthFinder struct{}

// NewTruthFinder returns the TruthFinder matcher.
func NewTruthFinder() Matcher {
	return truthFinder{}
}

// Name implements Matcher.
func (truthFinder) Name() string { return "TruthFinder" }

// Search implements Matcher.
func (truthFinder) Search(_ context.Context, q Query) (*model.BrokerResult, error) {
	if q.Profile == nil {
		return nil, ErrNilProfile
	}
	return &model.BrokerResult{
		Broker: "TruthFinder",
		Found:  false,
		Notes:  "Manual check recommended. Opt-out: " + TruthFinderOptOut,
	}, nil
}
