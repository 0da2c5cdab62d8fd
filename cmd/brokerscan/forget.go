package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewForgetCmd creates the forget command.
func NewForgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete every stored run for a person",
		Long: `Forget removes all stored discovery runs of a person from the history
database. Use it once a client's removal work is finished.

Example:
  brokerscan forget --name "Jane Doe" --city Austin --state TX`,
		Args: cobra.NoArgs,
		RunE: runForgetCmd,
	}

	addSubjectFlags(cmd)
	addDBDirFlag(cmd)

	return cmd
}

func runForgetCmd(cmd *cobra.Command, _ []string) error {
	profile, err := subjectFromFlags(cmd)
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := openHistory(dbDir)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.DeleteSubject(cmd.Context(), profile.SubjectKey())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d stored run(s) for %s\n", n, profile)
	return nil
}
