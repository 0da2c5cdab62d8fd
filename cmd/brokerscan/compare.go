package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/brokerscan/internal/database"
	"github.com/nao1215/brokerscan/internal/model"
	"github.com/nao1215/brokerscan/internal/report"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare stored runs for a person",
		Long: `Compare shows which brokers started or stopped listing a person between
two stored discovery runs. It is the quickest way to confirm that opt-out
requests were processed.

By default the latest run is compared with the one before it.

Examples:
  # Compare the latest two runs
  brokerscan compare --name "Jane Doe" --city Austin --state TX

  # List the stored runs of a person
  brokerscan compare -n "Jane Doe" --list

  # Compare the latest run with a specific stored run
  brokerscan compare -n "Jane Doe" --with-run-id 3

  # Compare with the first run on or after a date
  brokerscan compare -n "Jane Doe" --since 2026-01-01

  # List every person in the history database
  brokerscan compare --list-subjects`,
		Args: cobra.NoArgs,
		RunE: runCompareCmd,
	}

	addSubjectFlags(cmd)

	// History listing flags
	cmd.Flags().BoolP("list", "l", false, "List stored runs for the person")
	cmd.Flags().BoolP("list-subjects", "L", false, "List every person with stored runs")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0, "Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().String("since", "", "Compare with the first run on or after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false, "Output comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output comparison in Markdown format")
	addDBDirFlag(cmd)

	return cmd
}

func runCompareCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	listSubjects, err := flags.GetBool("list-subjects")
	if err != nil {
		return err
	}

	// Validate before opening the database.
	var profile *model.ClientProfile
	if !listSubjects {
		profile, err = subjectFromFlags(cmd)
		if err != nil {
			return fmt.Errorf("%w (use --list-subjects to see stored people)", err)
		}
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
	out := cmd.OutOrStdout()

	if listSubjects {
		return listStoredSubjects(ctx, out, db)
	}

	listHistory, err := flags.GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRunHistory(ctx, out, db, profile)
	}

	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown are mutually exclusive")
	}
	withRunID, err := flags.GetInt64("with-run-id")
	if err != nil {
		return err
	}
	since, err := flags.GetString("since")
	if err != nil {
		return err
	}

	previous, current, err := selectRuns(ctx, db, profile, withRunID, since)
	if err != nil {
		return err
	}

	comparison, err := report.CompareRuns(previous.Run, current.Run)
	if err != nil {
		return err
	}

	format := report.FormatText
	switch {
	case jsonOutput:
		format = report.FormatJSON
	case markdownOutput:
		format = report.FormatMarkdown
	}
	return report.WriteComparison(out, comparison, format)
}

// selectRuns returns the previous and current runs to compare. The current
// run is always the latest one.
func selectRuns(ctx context.Context, db *database.RunDB, profile *model.ClientProfile, withRunID int64, since string) (previous, current *database.StoredRun, err error) {
	key := profile.SubjectKey()

	latest, err := db.LatestRuns(ctx, key, 2)
	if err != nil {
		return nil, nil, err
	}
	if len(latest) == 0 {
		return nil, nil, fmt.Errorf("%w (subject: %s)", errNoRuns, profile)
	}
	current = latest[0]

	switch {
	case withRunID > 0:
		previous, err = db.RunByID(ctx, withRunID)
		if errors.Is(err, database.ErrRunNotFound) {
			return nil, nil, fmt.Errorf("run %d not found", withRunID)
		}
		if err != nil {
			return nil, nil, err
		}
		if previous.Run.Profile.SubjectKey() != key {
			return nil, nil, fmt.Errorf("run %d belongs to %s, not %s", withRunID, previous.Run.Profile, profile)
		}

	case since != "":
		date, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		history, err := db.History(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		// History is newest first; the oldest run on or after date wins.
		var id int64
		for i := len(history) - 1; i >= 0; i-- {
			if !history[i].StartedAt.Before(date) {
				id = history[i].ID
				break
			}
		}
		if id == 0 {
			return nil, nil, fmt.Errorf("no runs found since %s", since)
		}
		if id == current.ID {
			return nil, nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", since)
		}
		if previous, err = db.RunByID(ctx, id); err != nil {
			return nil, nil, err
		}

	default:
		if len(latest) < 2 {
			return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(latest))
		}
		previous = latest[1]
	}

	return previous, current, nil
}

func listStoredSubjects(ctx context.Context, out io.Writer, db *database.RunDB) error {
	subjects, err := db.ListSubjects(ctx)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		fmt.Fprintln(out, "No stored runs found in the database.")
		fmt.Fprintln(out, "\nUse 'brokerscan discover --name <name>' to search for a person.")
		return nil
	}

	fmt.Fprintf(out, "People with stored runs (%d):\n\n", len(subjects))
	fmt.Fprintf(out, "  %-40s  %-5s  %s\n", "Subject", "Runs", "Last run")
	for _, s := range subjects {
		fmt.Fprintf(out, "  %-40s  %-5d  %s\n", s.Subject, s.Runs, formatTime(s.LastRun))
	}
	return nil
}

func listRunHistory(ctx context.Context, out io.Writer, db *database.RunDB, profile *model.ClientProfile) error {
	history, err := db.History(ctx, profile.SubjectKey())
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintf(out, "No stored runs found for %s\n", profile)
		fmt.Fprintln(out, "\nUse 'brokerscan discover' to search for this person.")
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", profile, len(history))
	fmt.Fprintf(out, "  %-6s  %-20s  %s\n", "ID", "Date", "Summary")
	for _, meta := range history {
		fmt.Fprintf(out, "  %-6d  %-20s  %s\n", meta.ID, formatTime(meta.StartedAt), formatSummary(meta.Summary))
	}
	fmt.Fprintln(out, "\nUse 'brokerscan compare --with-run-id <id>' to compare with a specific run.")
	return nil
}

func formatSummary(s model.RunSummary) string {
	return fmt.Sprintf("%d/%d likely listings, %d errors", s.Found, s.Total, s.Errored)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
