package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for brokerscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brokerscan",
		Short: "Find a person's listings on people-search sites",
		Long: `brokerscan searches people-search ("data broker") websites for public
profile listings of a named person, then prints a report and an opt-out
checklist.

Matches are heuristic: a listing is flagged when the broker's result page
mentions the person's name. Confirm each listing before filing an opt-out.
Runs are stored locally so that 'report' and 'compare' can reuse them.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewDiscoverCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewBrokersCmd())
	cmd.AddCommand(NewForgetCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
