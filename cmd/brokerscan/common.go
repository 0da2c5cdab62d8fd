package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/brokerscan/internal/config"
	"github.com/nao1215/brokerscan/internal/log"
	"github.com/nao1215/brokerscan/internal/model"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the redacting logger that writes to the command's
// stderr.
func setupLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	return log.NewLogger(cmd.ErrOrStderr(), verbose, log.FormatText)
}

// addSubjectFlags registers the flags that identify a stored person.
func addSubjectFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("name", "n", "", "Full name of the person (required)")
	cmd.Flags().String("city", "", "City used in the discovery run")
	cmd.Flags().String("state", "", "State used in the discovery run")
}

func addDBDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the run history database")
}

// subjectFromFlags builds the profile named by --name, --city and --state.
func subjectFromFlags(cmd *cobra.Command) (*model.ClientProfile, error) {
	name, err := cmd.Flags().GetString("name")
	if err != nil {
		return nil, err
	}
	city, err := cmd.Flags().GetString("city")
	if err != nil {
		return nil, err
	}
	state, err := cmd.Flags().GetString("state")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, config.ErrNoName
	}
	return model.NewClientProfile(name, model.WithCity(city), model.WithState(state))
}

// openOutput returns stdout when path is empty, or creates path with owner
// only permissions. Reports name real people, so they are not world
// readable.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// applyConfigFile merges the config file into cfg. Flags given on the
// command line win. An explicit config path must exist; the default
// locations are optional.
func applyConfigFile(cmd *cobra.Command, cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.ApplyTo(cfg, cmd.Flags().Changed)
	case cfg.ConfigFilePath != "":
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}
	return nil
}
