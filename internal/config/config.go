package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName names the XDG directories.
	AppName = "brokerscan"

	// DefaultTimeout bounds each broker request. Broker pages are small;
	// a slow broker should not stall the run.
	DefaultTimeout = 10 * time.Second

	// DefaultAttempts is the number of tries per request.
	DefaultAttempts = 3

	// DefaultLimit caps the URLs a multi-result matcher reports.
	DefaultLimit = 5

	// DefaultDelayMin and DefaultDelayMax bound the pause after each broker.
	DefaultDelayMin = 700 * time.Millisecond
	DefaultDelayMax = 1600 * time.Millisecond

	// DefaultBatchSize is the number of profiles searched concurrently in
	// batch mode. Each profile still visits brokers one at a time.
	DefaultBatchSize = 4

	// DefaultTorStartupTimeout bounds the embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultMaxBodySize limits how much of a broker page is read.
	DefaultMaxBodySize = 5 * 1024 * 1024
)

// Config holds every option of a brokerscan invocation. It is filled from
// cobra flags, merged with the config file and passed down explicitly.
type Config struct {
	// Name is the full name to search. Required unless ListFile is set.
	Name string

	// City, State, Phone and Address narrow the search.
	City    string
	State   string
	Phone   string
	Address string

	// ListFile is a YAML or JSON file of profiles for batch mode.
	ListFile string

	// BatchSize is the number of profiles searched concurrently.
	BatchSize int

	// SitesFile is the broker list. Empty searches the default locations.
	SitesFile string

	// Brokers is an inline broker list from the config file. It is used
	// when no sites file is found.
	Brokers []string

	// IncludeDisabled searches brokers marked disabled in the list.
	IncludeDisabled bool

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Attempts is the number of tries per request.
	Attempts int

	// Limit caps the URLs of multi-result matchers.
	Limit int

	// DelayMin and DelayMax bound the politeness pause after each broker.
	// Both zero disables the pause.
	DelayMin time.Duration
	DelayMax time.Duration

	// ProxyAddress routes traffic through an external SOCKS5 proxy.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes traffic through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// SearchEngine replaces the generic fallback matcher with a
	// site-restricted web search.
	SearchEngine bool

	// OptOut maps broker keys to opt-out URLs that override the list.
	OptOut map[string]string

	// JSONReport, MarkdownReport and CSVReport select the report format.
	// At most one may be set; none selects the text report.
	JSONReport     bool
	MarkdownReport bool
	CSVReport      bool

	// ReportFile writes the report to a file instead of stdout. In batch
	// mode it names a directory that receives one report per profile.
	ReportFile string

	// SaveDir also writes the CSV, JSON and checklist files of each run
	// into this directory.
	SaveDir string

	// SaveToDB stores the run in the history database.
	SaveToDB bool

	// DBDir is the directory of the history database.
	DBDir string

	// Quiet suppresses the progress output.
	Quiet bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit config file. Empty searches for
	// .brokerscan in the current and home directories.
	ConfigFilePath string

	// UserAgent overrides the browser User-Agent. Empty keeps the default.
	UserAgent string

	// MaxBodySize limits how much of a page is read.
	MaxBodySize int64
}

// NewConfig returns a Config with the defaults applied.
func NewConfig() *Config {
	return &Config{
		BatchSize:         DefaultBatchSize,
		Timeout:           DefaultTimeout,
		Attempts:          DefaultAttempts,
		Limit:             DefaultLimit,
		DelayMin:          DefaultDelayMin,
		DelayMax:          DefaultDelayMax,
		TorStartupTimeout: DefaultTorStartupTimeout,
		OptOut:            make(map[string]string),
		SaveToDB:          true,
		DBDir:             XDGDataDir(),
		MaxBodySize:       DefaultMaxBodySize,
	}
}

// XDGDataDir returns the data directory that holds the history database.
// On Linux: ~/.local/share/brokerscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the directory searched for the broker list.
// On Linux: ~/.config/brokerscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ReportFormat returns the selected format name: "json", "markdown", "csv"
// or "text".
func (c *Config) ReportFormat() string {
	switch {
	case c.JSONReport:
		return "json"
	case c.MarkdownReport:
		return "markdown"
	case c.CSVReport:
		return "csv"
	default:
		return "text"
	}
}

// IsBatch reports whether profiles come from ListFile.
func (c *Config) IsBatch() bool {
	return c.ListFile != ""
}

// Validate returns the first invalid setting as a sentinel error.
func (c *Config) Validate() error {
	if c.Name == "" && c.ListFile == "" {
		return ErrNoName
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Attempts <= 0 {
		return ErrInvalidAttempts
	}
	if c.Limit <= 0 {
		return ErrInvalidLimit
	}
	if c.DelayMin < 0 || c.DelayMax < 0 || c.DelayMax < c.DelayMin {
		return ErrInvalidDelay
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	formats := 0
	for _, set := range []bool{c.JSONReport, c.MarkdownReport, c.CSVReport} {
		if set {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	if c.ProxyAddress != "" && c.UseTor {
		return ErrConflictingProxy
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
