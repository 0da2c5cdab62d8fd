package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".brokerscan"

// DelayFile is the delay section of the config file.
type DelayFile struct {
	Min *time.Duration `yaml:"min,omitempty"`
	Max *time.Duration `yaml:"max,omitempty"`
}

// File is the structure of the .brokerscan configuration file. Durations
// are written as Go duration strings such as "10s" or "700ms". Unset
// fields leave the flag values alone.
type File struct {
	// Sites is the path of the broker list.
	Sites string `yaml:"sites,omitempty"`

	// Brokers is an inline broker list used when no sites file is found.
	Brokers []string `yaml:"brokers,omitempty"`

	Timeout  *time.Duration `yaml:"timeout,omitempty"`
	Attempts *int           `yaml:"attempts,omitempty"`
	Limit    *int           `yaml:"limit,omitempty"`
	Delay    *DelayFile     `yaml:"delay,omitempty"`

	// Proxy is a SOCKS5 proxy address in host:port form.
	Proxy string `yaml:"proxy,omitempty"`

	// Tor starts the embedded Tor daemon.
	Tor *bool `yaml:"tor,omitempty"`

	SearchEngine *bool `yaml:"searchEngine,omitempty"`

	// OptOut maps broker keys (e.g. "spokeo-com") to opt-out URLs.
	OptOut map[string]string `yaml:"optOut,omitempty"`

	UserAgent string `yaml:"userAgent,omitempty"`
}

// LoadConfigFile reads the YAML configuration at path. A missing file
// yields ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	if cf.OptOut == nil {
		cf.OptOut = make(map[string]string)
	}
	return &cf, nil
}

// ApplyTo copies the file settings into cfg. A setting is skipped when
// isSet reports that the matching flag was given on the command line, so
// flags always win over the file. A nil isSet applies everything.
func (cf *File) ApplyTo(cfg *Config, isSet func(flag string) bool) {
	if isSet == nil {
		isSet = func(string) bool { return false }
	}

	if cf.Sites != "" && !isSet("sites") {
		cfg.SitesFile = cf.Sites
	}
	if len(cf.Brokers) > 0 {
		cfg.Brokers = append([]string(nil), cf.Brokers...)
	}
	if cf.Timeout != nil && !isSet("timeout") {
		cfg.Timeout = *cf.Timeout
	}
	if cf.Attempts != nil && !isSet("attempts") {
		cfg.Attempts = *cf.Attempts
	}
	if cf.Limit != nil && !isSet("limit") {
		cfg.Limit = *cf.Limit
	}
	if cf.Delay != nil {
		if cf.Delay.Min != nil && !isSet("delay-min") {
			cfg.DelayMin = *cf.Delay.Min
		}
		if cf.Delay.Max != nil && !isSet("delay-max") {
			cfg.DelayMax = *cf.Delay.Max
		}
	}
	// A proxy chosen on the command line, either kind, overrides both file
	// settings so that --tor does not conflict with a file proxy.
	if !isSet("proxy") && !isSet("tor") {
		if cf.Proxy != "" {
			cfg.ProxyAddress = cf.Proxy
		}
		if cf.Tor != nil {
			cfg.UseTor = *cf.Tor
		}
	}
	if cf.SearchEngine != nil && !isSet("search-engine") {
		cfg.SearchEngine = *cf.SearchEngine
	}
	if len(cf.OptOut) > 0 {
		if cfg.OptOut == nil {
			cfg.OptOut = make(map[string]string, len(cf.OptOut))
		}
		for k, v := range cf.OptOut {
			cfg.OptOut[k] = v
		}
	}
	if cf.UserAgent != "" {
		cfg.UserAgent = cf.UserAgent
	}
}

// FindConfigFile returns the configuration file to load:
//  1. configPath when it is given and exists
//  2. .brokerscan in the current directory
//  3. .brokerscan in the home directory
//
// It returns "" when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
