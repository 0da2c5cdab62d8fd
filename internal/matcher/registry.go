package matcher

import (
	"slices"
	"strings"
	"sync"
)

// Kind tells specialized handlers from generic ones.
type Kind int

const (
	// KindSpecialized is a site-specific matcher.
	KindSpecialized Kind = iota
	// KindGeneric is the domain-agnostic fallback.
	KindGeneric
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindSpecialized {
		return "specialized"
	}
	return "generic"
}

// Handler is the matcher serving one domain.
type Handler struct {
	Kind    Kind
	Matcher Matcher
}

// Specialized returns the site-specific matchers keyed by domain.
func Specialized(deps Deps) map[string]Matcher {
	return map[string]Matcher{
		"spokeo.com":           NewSpokeo(deps),
		"whitepages.com":       NewWhitepages(deps),
		"truepeoplesearch.com": NewTruePeopleSearch(deps),
		"fastpeoplesearch.com": NewFastPeopleSearch(deps),
		"radaris.com":          NewRadaris(deps),
		"usphonebook.com":      NewUSPhoneBook(deps),
		"searchpeoplefree.com": NewSearchPeopleFree(deps),
		"truthfinder.com":      NewTruthFinder(),
	}
}

// Registry resolves domains to handlers. Lookups of unknown domains install
// a fallback handler bound to the domain, so repeated lookups are O(1).
// It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	handlers map[string]Handler
	fallback func(domain string) Matcher
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSearchEngineFallback serves unknown domains with SearchEngine instead
// of Generic.
func WithSearchEngineFallback(deps Deps, opts ...SearchEngineOption) RegistryOption {
	return func(r *Registry) {
		r.fallback = func(domain string) Matcher {
			return NewSearchEngine(domain, deps, opts...)
		}
	}
}

// WithFallback sets the constructor of fallback matchers.
func WithFallback(fn func(domain string) Matcher) RegistryOption {
	return func(r *Registry) {
		r.fallback = fn
	}
}

// WithMatcher registers m as the specialized handler of domain.
func WithMatcher(domain string, m Matcher) RegistryOption {
	return func(r *Registry) {
		r.handlers[normalizeDomain(domain)] = Handler{Kind: KindSpecialized, Matcher: m}
	}
}

// NewRegistry builds a registry holding the Specialized matchers.
func NewRegistry(deps Deps, opts ...RegistryOption) *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
		fallback: func(domain string) Matcher { return NewGeneric(domain, deps) },
	}
	for domain, m := range Specialized(deps) {
		r.handlers[domain] = Handler{Kind: KindSpecialized, Matcher: m}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the handler for domain.
func (r *Registry) Lookup(domain string) Handler {
	domain = normalizeDomain(domain)

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handlers[domain]; ok {
		return h
	}
	h := Handler{Kind: KindGeneric, Matcher: r.fallback(domain)}
	r.handlers[domain] = h
	return h
}

// IsSpecialized reports whether domain has a site-specific matcher.
func (r *Registry) IsSpecialized(domain string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[normalizeDomain(domain)]
	return ok && h.Kind == KindSpecialized
}

// SpecializedDomains returns the domains with site-specific matchers, sorted.
func (r *Registry) SpecializedDomains() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	domains := make([]string, 0, len(r.handlers))
	for d, h := range r.handlers {
		if h.Kind == KindSpecialized {
			domains = append(domains, d)
		}
	}
	slices.Sort(domains)
	return domains
}

func normalizeDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
}
