package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/noticescan/internal/results"
)

// newSummaryCmd aggregates a finished (or interrupted) run directory without
// touching the browser.
func newSummaryCmd() *cobra.Command {
	summaryCmd := &cobra.Command{
		Use:   "summary [run-dir]",
		Short: "Aggregates the records of a scan run into one JSON summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else {
				latest, err := latestRunDir(cfg.Scan.ResultsDir)
				if err != nil {
					return err
				}
				dir = latest
			}

			summary, err := results.Summarize(dir)
			if err != nil {
				return err
			}

			out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("encode summary: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return summaryCmd
}

// latestRunDir picks the newest run under the results directory. Run IDs
// start with a UTC timestamp, so lexicographic order is creation order.
func latestRunDir(resultsDir string) (string, error) {
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return "", fmt.Errorf("read results directory: %w", err)
	}

	var runs []string
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no runs found under %s", resultsDir)
	}
	sort.Strings(runs)
	return filepath.Join(resultsDir, runs[len(runs)-1]), nil
}
