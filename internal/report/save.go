package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/brokerscan/internal/model"
)

// SavedFiles are the paths written by SaveResults.
type SavedFiles struct {
	CSV       string
	JSON      string
	Checklist string
}

// FileBase is the lower-cased name with spaces replaced by underscores.
func FileBase(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// SaveResults writes <base>_results.csv, <base>_results.json and
// <base>_checklist.txt for run into dir, creating dir when needed. The
// JSON file holds the flat result mappings.
func SaveResults(dir string, run *model.DiscoveryRun) (SavedFiles, error) {
	if run == nil || run.Profile == nil {
		return SavedFiles{}, ErrNilRun
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return SavedFiles{}, fmt.Errorf("failed to create report directory: %w", err)
	}

	base := filepath.Join(dir, FileBase(run.Profile.Name()))
	saved := SavedFiles{
		CSV:       base + "_results.csv",
		JSON:      base + "_results.json",
		Checklist: base + "_checklist.txt",
	}

	if err := writeFile(saved.CSV, func(f *os.File) error {
		_, err := NewCSVWriter(f).Write(run)
		return err
	}); err != nil {
		return SavedFiles{}, err
	}
	if err := writeFile(saved.JSON, func(f *os.File) error {
		_, err := NewJSONWriter(f, WithPrettyPrint()).WriteResults(run.Results)
		return err
	}); err != nil {
		return SavedFiles{}, err
	}
	if err := writeFile(saved.Checklist, func(f *os.File) error {
		_, err := f.WriteString(Checklist(run) + "\n")
		return err
	}); err != nil {
		return SavedFiles{}, err
	}

	return saved, nil
}

func writeFile(path string, fn func(*os.File) error) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
