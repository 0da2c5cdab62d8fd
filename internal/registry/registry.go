package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/brokerscan/internal/model"
)

// DefaultSites is the list used when no site list can be loaded.
var DefaultSites = []string{"Spokeo.com", "WhitePages.com", "TruthFinder.com"}

// SitesFileNames are looked up, in order, by FindSitesFile.
var SitesFileNames = []string{"sites.json", "sites.yaml", "sites.yml"}

// entry is one raw item of a site list.
type entry struct {
	Name      string `yaml:"name"`
	Display   string `yaml:"display"`
	Domain    string `yaml:"domain"`
	OptOutURL string `yaml:"optout_url"`
	Disabled  bool   `yaml:"disabled"`
}

// UnmarshalYAML accepts a bare string or a record.
func (e *entry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Name = node.Value
		return nil
	}
	type plain entry
	return node.Decode((*plain)(e))
}

func (e entry) display() string {
	if e.Name != "" {
		return strings.TrimSpace(e.Name)
	}
	return strings.TrimSpace(e.Display)
}

// LoadBrokers reads the site list at path and returns the normalized sites.
// Any failure, including an empty list, falls back to DefaultSites and is
// logged as a warning.
func LoadBrokers(path string) []model.BrokerSite {
	return loadWithFallback(path, slog.Default())
}

func loadWithFallback(path string, logger *slog.Logger) []model.BrokerSite {
	sites, err := LoadBrokersFile(path)
	if err != nil {
		logger.Warn("using built-in broker list", "path", path, "error", err)
		return Defaults()
	}
	return sites
}

// LoadBrokersFile reads and normalizes the site list at path.
func LoadBrokersFile(path string) ([]model.BrokerSite, error) {
	if path == "" {
		return nil, ErrSitesNotFound
	}
	f, err := os.Open(path) //nolint:gosec // user-provided site list path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSitesNotFound, path)
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	sites, err := LoadBrokersFrom(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sites, nil
}

// LoadBrokersFrom decodes a JSON or YAML site list from r.
func LoadBrokersFrom(r io.Reader) ([]model.BrokerSite, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoBrokers
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSiteList, err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	var entries []entry
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&entries); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSiteList, err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Brokers []entry `yaml:"brokers"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSiteList, err)
		}
		entries = wrapped.Brokers
	default:
		return nil, ErrInvalidSiteList
	}

	sites := make([]model.BrokerSite, 0, len(entries))
	for _, e := range entries {
		display := e.display()
		if display == "" {
			continue
		}
		sites = append(sites, newSite(display, e.Domain, e.OptOutURL, e.Disabled))
	}
	if len(sites) == 0 {
		return nil, ErrNoBrokers
	}
	return sites, nil
}

// FromNames normalizes bare display strings into sites.
func FromNames(names []string) []model.BrokerSite {
	sites := make([]model.BrokerSite, 0, len(names))
	for _, name := range names {
		display := strings.TrimSpace(name)
		if display == "" {
			continue
		}
		sites = append(sites, newSite(display, "", "", false))
	}
	return sites
}

// Defaults returns DefaultSites normalized.
func Defaults() []model.BrokerSite {
	return FromNames(DefaultSites)
}

// newSite builds a BrokerSite. An explicit domain wins over the one derived
// from the display string.
func newSite(display, domain, optOut string, disabled bool) model.BrokerSite {
	d := ExtractDomain(domain)
	if d == "" {
		d = ExtractDomain(display)
	}
	return model.BrokerSite{
		Key:       Slug(display),
		Display:   display,
		Domain:    d,
		OptOutURL: strings.TrimSpace(optOut),
		Disabled:  disabled,
	}
}

// FilterEnabled drops disabled sites unless includeDisabled is set.
// The input order is preserved.
func FilterEnabled(sites []model.BrokerSite, includeDisabled bool) []model.BrokerSite {
	out := make([]model.BrokerSite, 0, len(sites))
	for _, s := range sites {
		if s.Disabled && !includeDisabled {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FindSitesFile returns the site list to load. An explicit path is returned
// only if it exists. Otherwise SitesFileNames are tried in the current
// directory and then in each of dirs. It returns "" when nothing is found.
func FindSitesFile(explicit string, dirs ...string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	search := make([]string, 0, len(dirs)+1)
	if cwd, err := os.Getwd(); err == nil {
		search = append(search, cwd)
	}
	search = append(search, dirs...)

	for _, dir := range search {
		for _, name := range SitesFileNames {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// FileSource loads brokers from a site list file on every call.
// It satisfies the broker source the discovery orchestrator expects.
type FileSource struct {
	Path   string
	Logger *slog.Logger
}

// Brokers implements the orchestrator's broker source.
// It never fails; load errors fall back to the built-in list.
func (s FileSource) Brokers(_ context.Context) ([]model.BrokerSite, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return loadWithFallback(s.Path, logger), nil
}

// StaticSource serves a fixed site list.
type StaticSource []model.BrokerSite

// Brokers implements the orchestrator's broker source.
func (s StaticSource) Brokers(_ context.Context) ([]model.BrokerSite, error) {
	out := make([]model.BrokerSite, len(s))
	copy(out, s)
	return out, nil
}
