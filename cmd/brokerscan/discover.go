package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/brokerscan/internal/config"
	"github.com/nao1215/brokerscan/internal/database"
	"github.com/nao1215/brokerscan/internal/fetch"
	"github.com/nao1215/brokerscan/internal/matcher"
	"github.com/nao1215/brokerscan/internal/model"
	"github.com/nao1215/brokerscan/internal/pipeline"
	"github.com/nao1215/brokerscan/internal/proxy"
	"github.com/nao1215/brokerscan/internal/registry"
	"github.com/nao1215/brokerscan/internal/report"
)

// transportFunc opens the HTTP client used for one invocation. The returned
// closer releases the proxy or the embedded Tor daemon.
type transportFunc func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*http.Client, io.Closer, error)

// NewDiscoverCmd creates the discover command.
func NewDiscoverCmd() *cobra.Command {
	return newDiscoverCmd(openTransport)
}

func newDiscoverCmd(transport transportFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Search people-search sites for a person",
		Long: `Discover searches every broker in the list for listings of one person
and prints a report that ends with an opt-out checklist.

Brokers are searched one at a time with a randomized pause between them.
A broker that fails is reported as an error and never stops the run.

Examples:
  # Search the default broker list
  brokerscan discover --name "Jane Q. Doe" --city Austin --state TX

  # Use a custom broker list and write a Markdown report
  brokerscan discover -n "Jane Doe" --sites sites.yaml --markdown -o jane.md

  # Route every request through Tor
  brokerscan discover -n "Jane Doe" --tor

  # Search many people from a YAML list, four at a time
  brokerscan discover --list people.yaml --batch 4 -o reports/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscoverCmd(cmd, transport)
		},
	}

	// Subject flags
	addSubjectFlags(cmd)
	cmd.Flags().String("phone", "", "Phone number, used only for display")
	cmd.Flags().String("address", "", "Street address, used only for display")
	cmd.Flags().StringP("list", "l", "", "YAML or JSON file of people to search in batch mode")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of people searched concurrently in batch mode")

	// Broker list flags
	cmd.Flags().StringP("sites", "s", "", "Broker list file (default: sites.json or sites.yaml in the current or config directory)")
	cmd.Flags().Bool("include-disabled", false, "Also search brokers marked disabled in the list")

	// Transport flags
	cmd.Flags().String("proxy", "", "Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false, "Route requests through an embedded Tor daemon")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")

	// Search behavior flags
	cmd.Flags().Bool("search-engine", false, "Use a site-restricted web search for brokers without a dedicated matcher")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().Int("attempts", config.DefaultAttempts, "Attempts per request for retrying matchers")
	cmd.Flags().Int("limit", config.DefaultLimit, "Maximum profile URLs kept per broker")
	cmd.Flags().Duration("delay-min", config.DefaultDelayMin, "Minimum pause after each broker")
	cmd.Flags().Duration("delay-max", config.DefaultDelayMax, "Maximum pause after each broker")

	// Configuration file
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .brokerscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false, "Output JSON report")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report")
	cmd.Flags().Bool("csv", false, "Output CSV report")
	cmd.Flags().StringP("output", "o", "", "Write report to file (a directory in batch mode)")
	cmd.Flags().String("save-dir", "", "Also write CSV, JSON and checklist files into this directory")
	cmd.Flags().Bool("no-save", false, "Do not store the run in the history database")
	addDBDirFlag(cmd)
	cmd.Flags().BoolP("quiet", "q", false, "Suppress progress output")

	return cmd
}

// runDiscoverCmd executes the discover command.
func runDiscoverCmd(cmd *cobra.Command, transport transportFunc) error {
	cfg, err := buildDiscoverConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runDiscover(ctx, cmd, cfg, transport, logger)
}

// buildDiscoverConfig creates a Config from the flags and the config file.
// Flags given on the command line win over the file.
func buildDiscoverConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var err error

	stringFlags := []struct {
		name string
		dst  *string
	}{
		{"name", &cfg.Name},
		{"city", &cfg.City},
		{"state", &cfg.State},
		{"phone", &cfg.Phone},
		{"address", &cfg.Address},
		{"list", &cfg.ListFile},
		{"sites", &cfg.SitesFile},
		{"proxy", &cfg.ProxyAddress},
		{"config", &cfg.ConfigFilePath},
		{"output", &cfg.ReportFile},
		{"save-dir", &cfg.SaveDir},
		{"db-dir", &cfg.DBDir},
	}
	for _, f := range stringFlags {
		if *f.dst, err = flags.GetString(f.name); err != nil {
			return nil, err
		}
	}

	boolFlags := []struct {
		name string
		dst  *bool
	}{
		{"include-disabled", &cfg.IncludeDisabled},
		{"tor", &cfg.UseTor},
		{"search-engine", &cfg.SearchEngine},
		{"json", &cfg.JSONReport},
		{"markdown", &cfg.MarkdownReport},
		{"csv", &cfg.CSVReport},
		{"quiet", &cfg.Quiet},
	}
	for _, f := range boolFlags {
		if *f.dst, err = flags.GetBool(f.name); err != nil {
			return nil, err
		}
	}

	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Attempts, err = flags.GetInt("attempts"); err != nil {
		return nil, err
	}
	if cfg.Limit, err = flags.GetInt("limit"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.DelayMin, err = flags.GetDuration("delay-min"); err != nil {
		return nil, err
	}
	if cfg.DelayMax, err = flags.GetDuration("delay-max"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.Verbose = getVerboseFlag(cmd)

	if err := applyConfigFile(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openTransport opens the direct, SOCKS5 or Tor transport selected by cfg.
func openTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*http.Client, io.Closer, error) {
	settings := proxy.Settings{
		Mode:              proxy.ModeDirect,
		Address:           cfg.ProxyAddress,
		Timeout:           cfg.Timeout,
		TorStartupTimeout: cfg.TorStartupTimeout,
	}
	switch {
	case cfg.UseTor:
		settings.Mode = proxy.ModeTor
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, "Starting embedded Tor daemon...")
			fmt.Fprintln(os.Stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.")
		}
	case cfg.ProxyAddress != "":
		settings.Mode = proxy.ModeSOCKS5
	}

	session, err := proxy.Open(ctx, settings, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s transport: %w", settings.Mode, err)
	}
	return session.HTTPClient(), session, nil
}

// newOrchestrator wires the fetcher, matchers and broker source for cfg.
func newOrchestrator(cfg *config.Config, client *http.Client, logger *slog.Logger) *pipeline.Orchestrator {
	fetchOpts := []fetch.Option{
		fetch.WithLogger(logger),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
	}
	if cfg.UserAgent != "" {
		fetchOpts = append(fetchOpts, fetch.WithUserAgent(cfg.UserAgent))
	}

	deps := matcher.Deps{
		Fetcher: fetch.New(client, fetchOpts...),
		Delay: &fetch.DelayPolicy{
			Min:     cfg.DelayMin,
			Max:     cfg.DelayMax,
			Sleeper: fetch.TimerSleeper{},
		},
		Logger: logger,
	}

	var regOpts []matcher.RegistryOption
	if cfg.SearchEngine {
		regOpts = append(regOpts, matcher.WithSearchEngineFallback(deps))
	}

	return pipeline.New(brokerSource(cfg, logger), deps,
		pipeline.WithLogger(logger),
		pipeline.WithRegistry(matcher.NewRegistry(deps, regOpts...)),
		pipeline.WithTimeout(cfg.Timeout),
		pipeline.WithLimit(cfg.Limit),
		pipeline.WithAttempts(cfg.Attempts),
		pipeline.WithOptOutOverrides(cfg.OptOut),
	)
}

// brokerSource picks the broker list: an explicit or discovered sites file,
// then the inline list of the config file, then the built-in defaults.
func brokerSource(cfg *config.Config, logger *slog.Logger) pipeline.BrokerSource {
	if cfg.SitesFile != "" {
		return registry.FileSource{Path: cfg.SitesFile, Logger: logger}
	}
	if path := registry.FindSitesFile("", config.XDGConfigDir()); path != "" {
		logger.Info("using broker list", "path", path)
		return registry.FileSource{Path: path, Logger: logger}
	}
	if len(cfg.Brokers) > 0 {
		return registry.StaticSource(registry.FromNames(cfg.Brokers))
	}
	return registry.StaticSource(registry.Defaults())
}

// runDiscover executes discovery for one person or a batch.
func runDiscover(ctx context.Context, cmd *cobra.Command, cfg *config.Config, transport transportFunc, logger *slog.Logger) error {
	logger.Info("starting discover",
		"batch", cfg.IsBatch(),
		"proxy", cfg.ProxyAddress != "",
		"tor", cfg.UseTor,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.RunDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	client, closer, err := transport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil {
			logger.Error("failed to close transport", "error", cerr)
		}
	}()

	o := newOrchestrator(cfg, client, logger)

	if cfg.IsBatch() {
		return runBatchDiscover(ctx, cmd, cfg, o, db, logger)
	}

	profile, err := model.NewClientProfile(cfg.Name,
		model.WithCity(cfg.City),
		model.WithState(cfg.State),
		model.WithPhone(cfg.Phone),
		model.WithAddress(cfg.Address),
	)
	if err != nil {
		return err
	}

	progress := newProgressBar(cmd.ErrOrStderr(), cfg.Quiet)
	run, err := o.RunDiscovery(ctx, profile, progress.Update, cfg.IncludeDisabled)
	progress.Done()
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if err := finishRun(ctx, cmd, cfg, run, cfg.ReportFile, db, logger); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("discovery interrupted: %w", err)
	}
	return nil
}

// runBatchDiscover searches every profile of the list file concurrently.
func runBatchDiscover(ctx context.Context, cmd *cobra.Command, cfg *config.Config, o *pipeline.Orchestrator, db *database.RunDB, logger *slog.Logger) error {
	profiles, err := config.LoadProfiles(cfg.ListFile)
	if err != nil {
		return fmt.Errorf("failed to load profile list: %w", err)
	}

	stderr := cmd.ErrOrStderr()
	if !cfg.Quiet {
		fmt.Fprintf(stderr, "Starting batch discovery of %d people (concurrency: %d)...\n\n", len(profiles), cfg.BatchSize)
	}
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(o,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithIncludeDisabled(cfg.IncludeDisabled),
		pipeline.WithBatchLogger(logger),
	)

	var (
		mu     sync.Mutex
		failed int
	)
	err = bp.ProcessBatchWithCallback(ctx, profiles, func(index int, res pipeline.BatchResult) {
		mu.Lock()
		defer mu.Unlock()

		if res.Err != nil {
			failed++
			fmt.Fprintf(stderr, "[%d/%d] Discovery failed for %s: %v\n", index+1, len(profiles), res.Profile, res.Err)
			return
		}
		if !cfg.Quiet {
			fmt.Fprintf(stderr, "[%d/%d] Completed: %s (%d likely listings)\n",
				index+1, len(profiles), res.Profile, res.Run.Summary().Found)
		}

		path := ""
		if cfg.ReportFile != "" {
			path = filepath.Join(cfg.ReportFile, report.FileBase(res.Profile.Name())+"_report"+reportExt(cfg.ReportFormat()))
		}
		if err := finishRun(ctx, cmd, cfg, res.Run, path, db, logger); err != nil {
			failed++
			logger.Error("failed to output run", "subject", res.Profile.String(), "error", err)
		}
	})

	if !cfg.Quiet {
		fmt.Fprintf(stderr, "\nBatch discovery completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d discoveries failed", failed, len(profiles))
	}
	return nil
}

// finishRun writes the report, the optional result files and the history
// entry of one run.
func finishRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config, run *model.DiscoveryRun, reportPath string, db *database.RunDB, logger *slog.Logger) error {
	if err := writeRunReport(cmd.OutOrStdout(), cfg.ReportFormat(), reportPath, run); err != nil {
		return err
	}
	if reportPath != "" && !cfg.Quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", reportPath)
	}

	if cfg.SaveDir != "" {
		saved, err := report.SaveResults(cfg.SaveDir, run)
		if err != nil {
			return err
		}
		if !cfg.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s, %s and %s\n", saved.CSV, saved.JSON, saved.Checklist)
		}
	}

	// A failed save does not discard a report the user already has.
	if err := saveRun(ctx, db, run, logger); err != nil {
		logger.Error("failed to save run", "error", err)
	}
	return nil
}

// writeRunReport renders run in format to path, or to stdout when path is
// empty.
func writeRunReport(stdout io.Writer, format, path string, run *model.DiscoveryRun) (err error) {
	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}
	out, closeOut, err := openOutput(path, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close report: %w", cerr)
		}
	}()

	w, err := report.NewWriter(f, out, getVersion())
	if err != nil {
		return err
	}
	if _, err := w.Write(run); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// saveRun stores run in the history database. A nil db is a no-op.
func saveRun(ctx context.Context, db *database.RunDB, run *model.DiscoveryRun, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	// The run is stored even after an interrupt; its skipped brokers are
	// already marked errored.
	id, err := db.SaveRun(context.WithoutCancel(ctx), run)
	if err != nil {
		return err
	}
	logger.Info("run saved to database", "id", id, "subject", run.Profile.String())
	return nil
}

func reportExt(format string) string {
	switch format {
	case "json":
		return ".json"
	case "csv":
		return ".csv"
	case "markdown":
		return ".md"
	default:
		return ".txt"
	}
}

// errNoRuns is returned by report and compare when the history is empty.
var errNoRuns = errors.New("no stored runs; run 'brokerscan discover' first")
