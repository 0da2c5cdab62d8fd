package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/brokerscan/internal/config"
	"github.com/nao1215/brokerscan/internal/matcher"
	"github.com/nao1215/brokerscan/internal/model"
	"github.com/nao1215/brokerscan/internal/registry"
)

// NewBrokersCmd creates the brokers command.
func NewBrokersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brokers",
		Short: "List the brokers that discover would search",
		Long: `Brokers prints the broker list that 'discover' would use, together with
the handler that searches each site. Sites without a dedicated matcher are
searched with the generic matcher, or with a web search when
--search-engine is set.

Examples:
  # Show the active broker list
  brokerscan brokers

  # Include brokers marked disabled
  brokerscan brokers --sites sites.yaml --all

  # Machine-readable output
  brokerscan brokers --json`,
		Args: cobra.NoArgs,
		RunE: runBrokersCmd,
	}

	cmd.Flags().StringP("sites", "s", "", "Broker list file (default: sites.json or sites.yaml in the current or config directory)")
	cmd.Flags().BoolP("all", "a", false, "Include brokers marked disabled")
	cmd.Flags().Bool("search-engine", false, "Show the web search handler for brokers without a dedicated matcher")
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .brokerscan in current or home directory)")
	cmd.Flags().BoolP("json", "j", false, "Output the list in JSON format")

	return cmd
}

// brokerEntry is one row of the brokers listing.
type brokerEntry struct {
	model.BrokerSite
	Handler string `json:"handler"`
}

func runBrokersCmd(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(cmd, getVerboseFlag(cmd))
	flags := cmd.Flags()

	cfg := config.NewConfig()
	var err error
	if cfg.SitesFile, err = flags.GetString("sites"); err != nil {
		return err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return err
	}
	if cfg.SearchEngine, err = flags.GetBool("search-engine"); err != nil {
		return err
	}
	all, err := flags.GetBool("all")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	if err := applyConfigFile(cmd, cfg); err != nil {
		return err
	}

	sites, err := brokerSource(cfg, logger).Brokers(cmd.Context())
	if err != nil {
		return err
	}
	sites = registry.FilterEnabled(sites, all)

	// Handlers are only inspected, never run, so no fetcher is needed.
	deps := matcher.Deps{Logger: logger}
	var regOpts []matcher.RegistryOption
	if cfg.SearchEngine {
		regOpts = append(regOpts, matcher.WithSearchEngineFallback(deps))
	}
	reg := matcher.NewRegistry(deps, regOpts...)

	entries := make([]brokerEntry, 0, len(sites))
	for _, site := range sites {
		entries = append(entries, brokerEntry{BrokerSite: site, Handler: handlerName(reg, site.Domain, cfg.SearchEngine)})
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	return writeBrokerTable(cmd.OutOrStdout(), entries)
}

func handlerName(reg *matcher.Registry, domain string, searchEngine bool) string {
	if reg.IsSpecialized(domain) {
		return matcher.KindSpecialized.String()
	}
	if searchEngine {
		return "search-engine"
	}
	return matcher.KindGeneric.String()
}

func writeBrokerTable(out io.Writer, entries []brokerEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No brokers configured.")
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		state := "enabled"
		if e.Disabled {
			state = "disabled"
		}
		optOut := e.OptOutURL
		if optOut == "" {
			optOut = "-"
		}
		rows = append(rows, []string{e.Name(), e.Domain, e.Handler, state, optOut})
	}

	md := markdown.NewMarkdown(out)
	md.Table(markdown.TableSet{
		Header: []string{"Broker", "Domain", "Handler", "State", "Opt-out"},
		Rows:   rows,
	})
	md.PlainText("")
	md.PlainText(fmt.Sprintf("%d broker(s)", len(entries)))
	return md.Build()
}
