package model

// BrokerSite is one configured data-broker website.
// Sites are loaded once per run by the registry package and never mutated.
type BrokerSite struct {
	// Key is a URL-safe slug derived from Display (e.g. "spokeo-com").
	Key string `json:"key" yaml:"key"`

	// Display is the human-readable name as written in the site list.
	Display string `json:"display" yaml:"display"`

	// Domain is the bare hostname used to select a matcher (e.g. "spokeo.com").
	Domain string `json:"domain" yaml:"domain"`

	// OptOutURL is an optional removal page attached to results without notes.
	OptOutURL string `json:"optout_url,omitempty" yaml:"optout_url,omitempty"`

	// Disabled excludes the site from discovery unless explicitly included.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Name returns the display name, falling back to the domain.
func (b BrokerSite) Name() string {
	if b.Display != "" {
		return b.Display
	}
	return b.Domain
}
