package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	tests := []struct {
		name string
		ok   bool
	}{
		{"timeout is 10s", cfg.Timeout == 10*time.Second},
		{"attempts is 3", cfg.Attempts == 3},
		{"limit is 5", cfg.Limit == 5},
		{"delay is 700ms..1.6s", cfg.DelayMin == 700*time.Millisecond && cfg.DelayMax == 1600*time.Millisecond},
		{"batch size is 4", cfg.BatchSize == 4},
		{"tor startup timeout is 3m", cfg.TorStartupTimeout == 3*time.Minute},
		{"runs are saved", cfg.SaveToDB},
		{"db dir is the XDG data dir", cfg.DBDir == XDGDataDir()},
		{"no proxy", cfg.ProxyAddress == "" && !cfg.UseTor},
		{"opt-out map is ready", cfg.OptOut != nil},
		{"text report", cfg.ReportFormat() == "text"},
	}
	for _, tt := range tests {
		if !tt.ok {
			t.Errorf("default: %s", tt.name)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.Name = "Jane Doe"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults with a name", mutate: func(*Config) {}},
		{name: "list instead of name", mutate: func(c *Config) { c.Name = ""; c.ListFile = "people.yaml" }},
		{name: "no name", mutate: func(c *Config) { c.Name = "" }, wantErr: ErrNoName},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, wantErr: ErrInvalidTimeout},
		{name: "zero attempts", mutate: func(c *Config) { c.Attempts = 0 }, wantErr: ErrInvalidAttempts},
		{name: "zero limit", mutate: func(c *Config) { c.Limit = 0 }, wantErr: ErrInvalidLimit},
		{name: "negative delay", mutate: func(c *Config) { c.DelayMin = -time.Millisecond }, wantErr: ErrInvalidDelay},
		{name: "max below min", mutate: func(c *Config) { c.DelayMin, c.DelayMax = time.Second, time.Millisecond }, wantErr: ErrInvalidDelay},
		{name: "no delay", mutate: func(c *Config) { c.DelayMin, c.DelayMax = 0, 0 }},
		{name: "zero batch", mutate: func(c *Config) { c.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{name: "json and markdown", mutate: func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, wantErr: ErrConflictingReportFormats},
		{name: "json and csv", mutate: func(c *Config) { c.JSONReport, c.CSVReport = true, true }, wantErr: ErrConflictingReportFormats},
		{name: "csv alone", mutate: func(c *Config) { c.CSVReport = true }},
		{name: "proxy and tor", mutate: func(c *Config) { c.ProxyAddress, c.UseTor = "127.0.0.1:9050", true }, wantErr: ErrConflictingProxy},
		{name: "negative body size", mutate: func(c *Config) { c.MaxBodySize = -1 }, wantErr: ErrInvalidMaxBodySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReportFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]*Config{
		"json":     {JSONReport: true},
		"markdown": {MarkdownReport: true},
		"csv":      {CSVReport: true},
		"text":     {},
	}
	for want, cfg := range cases {
		if got := cfg.ReportFormat(); got != want {
			t.Errorf("ReportFormat() = %q, want %q", got, want)
		}
	}
	if (&Config{ListFile: "x.yaml"}).IsBatch() != true || (&Config{}).IsBatch() {
		t.Error("IsBatch() mismatch")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("error = %v, want ErrConfigNotFound", err)
		}
		if cf != nil {
			t.Error("expected nil file")
		}
	})

	t.Run("full file", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `sites: ./sites.yaml
brokers:
  - Spokeo.com
  - Radaris.com
timeout: 15s
attempts: 2
limit: 8
delay:
  min: 200ms
  max: 1s
proxy: 127.0.0.1:9150
searchEngine: true
optOut:
  spokeo-com: https://www.spokeo.com/optout
userAgent: test-agent
`)
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		if cf.Sites != "./sites.yaml" || len(cf.Brokers) != 2 {
			t.Errorf("sites = %q, brokers = %v", cf.Sites, cf.Brokers)
		}
		if cf.Timeout == nil || *cf.Timeout != 15*time.Second {
			t.Errorf("timeout = %v", cf.Timeout)
		}
		if cf.Attempts == nil || *cf.Attempts != 2 || cf.Limit == nil || *cf.Limit != 8 {
			t.Errorf("attempts = %v, limit = %v", cf.Attempts, cf.Limit)
		}
		if cf.Delay == nil || *cf.Delay.Min != 200*time.Millisecond || *cf.Delay.Max != time.Second {
			t.Errorf("delay = %+v", cf.Delay)
		}
		if cf.Proxy != "127.0.0.1:9150" || cf.SearchEngine == nil || !*cf.SearchEngine {
			t.Errorf("proxy = %q, searchEngine = %v", cf.Proxy, cf.SearchEngine)
		}
		if cf.OptOut["spokeo-com"] != "https://www.spokeo.com/optout" {
			t.Errorf("optOut = %v", cf.OptOut)
		}
	})

	t.Run("empty file initializes opt-out map", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile(writeConfig(t, "# nothing\n"))
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		if cf.OptOut == nil {
			t.Error("OptOut not initialized")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(writeConfig(t, "timeout: [}")); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("invalid duration", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(writeConfig(t, "timeout: soon\n")); err == nil {
			t.Error("expected error for invalid duration")
		}
	})
}

func TestFileApplyTo(t *testing.T) {
	t.Parallel()

	timeout := 20 * time.Second
	attempts := 5
	minDelay := 100 * time.Millisecond
	tor := true
	search := true
	file := &File{
		Sites:        "brokers.yaml",
		Brokers:      []string{"Radaris.com"},
		Timeout:      &timeout,
		Attempts:     &attempts,
		Delay:        &DelayFile{Min: &minDelay},
		Tor:          &tor,
		SearchEngine: &search,
		OptOut:       map[string]string{"radaris-com": "https://radaris.com/control/privacy"},
		UserAgent:    "agent",
	}

	t.Run("file fills unset flags", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		file.ApplyTo(cfg, nil)

		if cfg.SitesFile != "brokers.yaml" || cfg.Timeout != timeout || cfg.Attempts != attempts {
			t.Errorf("cfg = %+v", cfg)
		}
		if cfg.DelayMin != minDelay || cfg.DelayMax != DefaultDelayMax {
			t.Errorf("delay = %v..%v", cfg.DelayMin, cfg.DelayMax)
		}
		if !cfg.UseTor || !cfg.SearchEngine || cfg.UserAgent != "agent" {
			t.Errorf("tor = %v, searchEngine = %v, ua = %q", cfg.UseTor, cfg.SearchEngine, cfg.UserAgent)
		}
		if cfg.OptOut["radaris-com"] == "" || len(cfg.Brokers) != 1 {
			t.Errorf("optOut = %v, brokers = %v", cfg.OptOut, cfg.Brokers)
		}
	})

	t.Run("flags win", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Timeout = 3 * time.Second
		cfg.ProxyAddress = "127.0.0.1:9050"
		set := map[string]bool{"timeout": true, "proxy": true}
		file.ApplyTo(cfg, func(name string) bool { return set[name] })

		if cfg.Timeout != 3*time.Second {
			t.Errorf("Timeout = %v, want flag value", cfg.Timeout)
		}
		if cfg.UseTor {
			t.Error("file tor setting overrode --proxy")
		}
		if err := func() error { cfg.Name = "Jane Doe"; return cfg.Validate() }(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "timeout: 5s\n")
		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("missing explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("FindConfigFile() = %q, want empty", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"data": XDGDataDir(), "config": XDGConfigDir()} {
		if !strings.HasSuffix(dir, AppName) {
			t.Errorf("%s dir %q does not end in %q", name, dir, AppName)
		}
	}
}
