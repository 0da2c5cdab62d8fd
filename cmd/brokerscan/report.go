package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/brokerscan/internal/database"
	"github.com/nao1215/brokerscan/internal/report"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the latest stored run for a person",
		Long: `Report loads the most recent discovery run of a person from the history
database and renders it again, without contacting any broker.

The person is identified by the same name, city and state that were used
for 'discover'.

Examples:
  # Print the latest run as text
  brokerscan report --name "Jane Doe" --city Austin --state TX

  # Write a Markdown report to a file
  brokerscan report -n "Jane Doe" --format markdown -o jane.md

  # Print only the opt-out checklist
  brokerscan report -n "Jane Doe" --checklist

  # Write the CSV, JSON and checklist files into a directory
  brokerscan report -n "Jane Doe" --save-dir reports`,
		Args: cobra.NoArgs,
		RunE: runReportCmd,
	}

	addSubjectFlags(cmd)
	cmd.Flags().StringP("format", "f", string(report.FormatText), "Report format: text, json, csv or markdown")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path")
	cmd.Flags().String("save-dir", "", "Write CSV, JSON and checklist files into this directory")
	cmd.Flags().Bool("checklist", false, "Print only the opt-out checklist")
	cmd.Flags().Int64("run-id", 0, "Render the stored run with this ID instead of the latest")
	addDBDirFlag(cmd)

	return cmd
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(cmd, getVerboseFlag(cmd))

	flags := cmd.Flags()
	formatName, err := flags.GetString("format")
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	saveDir, err := flags.GetString("save-dir")
	if err != nil {
		return err
	}
	checklistOnly, err := flags.GetBool("checklist")
	if err != nil {
		return err
	}
	runID, err := flags.GetInt64("run-id")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := openHistory(dbDir)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	var stored *database.StoredRun
	if runID > 0 {
		stored, err = db.RunByID(ctx, runID)
		if errors.Is(err, database.ErrRunNotFound) {
			return fmt.Errorf("run %d not found", runID)
		}
	} else {
		profile, perr := subjectFromFlags(cmd)
		if perr != nil {
			return perr
		}
		stored, err = db.LatestRun(ctx, profile.SubjectKey())
		if errors.Is(err, database.ErrRunNotFound) {
			return fmt.Errorf("%w (subject: %s)", errNoRuns, profile)
		}
	}
	if err != nil {
		return err
	}
	logger.Debug("loaded stored run", "id", stored.ID, "subject", stored.Run.Profile.String())

	if checklistOnly {
		out, closeOut, err := openOutput(outputPath, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		_, werr := fmt.Fprintln(out, report.Checklist(stored.Run))
		if cerr := closeOut(); werr == nil {
			werr = cerr
		}
		return werr
	}

	if err := writeRunReport(cmd.OutOrStdout(), string(format), outputPath, stored.Run); err != nil {
		return err
	}

	if saveDir != "" {
		saved, err := report.SaveResults(saveDir, stored.Run)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s, %s and %s\n", saved.CSV, saved.JSON, saved.Checklist)
	}
	return nil
}

// openHistory opens an existing history database. A missing database means
// no run was ever stored.
func openHistory(dbDir string) (*database.RunDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		return nil, errNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
