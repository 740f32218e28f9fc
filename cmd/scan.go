package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/noticescan/api/schemas"
	"github.com/xkilldash9x/noticescan/internal/browser"
	"github.com/xkilldash9x/noticescan/internal/config"
	"github.com/xkilldash9x/noticescan/internal/detect"
	"github.com/xkilldash9x/noticescan/internal/domains"
	"github.com/xkilldash9x/noticescan/internal/observability"
	"github.com/xkilldash9x/noticescan/internal/results"
	"github.com/xkilldash9x/noticescan/internal/scanner"
)

// newScanCmd creates and configures the `scan` command.
func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scans a domain list for cookie consent notices",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment.
			bindings := map[string]string{
				"scan.dataset":          "dataset",
				"scan.domains_file":     "domains-file",
				"scan.start":            "start",
				"scan.end":              "end",
				"scan.results_dir":      "results",
				"scan.click":            "click",
				"scan.screenshots":      "screenshots",
				"scan.rate_limit":       "rate-limit",
				"browser.tab_pool_size": "concurrency",
				"browser.debugger_url":  "debugger-url",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			// Re-unmarshal so the freshly bound flags take effect.
			var fresh config.Config
			if err := viper.Unmarshal(&fresh); err != nil {
				return fmt.Errorf("apply flag overrides: %w", err)
			}
			if err := fresh.Validate(); err != nil {
				return err
			}
			cfg = &fresh

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runScan(ctx, logger, cfg)
		},
	}

	scanCmd.Flags().Int("dataset", 1, "Domain list to scan: 1 for the bundled top sites, 2 for --domains-file")
	scanCmd.Flags().String("domains-file", "", "Path to a newline-separated domain list (dataset 2)")
	scanCmd.Flags().Int("start", 1, "First rank to scan (1-based, inclusive)")
	scanCmd.Flags().Int("end", 0, "Last rank to scan (inclusive, 0 means the end of the list)")
	scanCmd.Flags().StringP("results", "r", "results", "Directory to write run output into")
	scanCmd.Flags().Bool("click", false, "Click the elements of a detected notice and record the effects")
	scanCmd.Flags().Bool("screenshots", false, "Save a viewport screenshot for each detected notice")
	scanCmd.Flags().Float64("rate-limit", 0, "Maximum domains started per second (0 disables)")
	scanCmd.Flags().IntP("concurrency", "j", 2, "Number of browser tabs scanning in parallel")
	scanCmd.Flags().String("debugger-url", "http://127.0.0.1:9222", "Remote debugging endpoint of the running browser")

	return scanCmd
}

func runScan(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	list, err := loadDomainList(cfg)
	if err != nil {
		return err
	}
	window := domains.Slice(list, cfg.Scan.Start, cfg.Scan.End)
	if len(window) == 0 {
		return fmt.Errorf("rank window %d-%d selects no domains out of %d", cfg.Scan.Start, cfg.Scan.End, len(list))
	}

	runID := time.Now().UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
	logger.Info("Preparing scan run.",
		zap.String("run_id", runID),
		zap.Int("domains", len(window)),
		zap.String("results_dir", cfg.Scan.ResultsDir))

	recorder, err := results.NewRecorder(logger, schemas.RunManifest{
		RunID:          runID,
		Dataset:        datasetName(cfg),
		ResultsDir:     cfg.Scan.ResultsDir,
		ClickMode:      cfg.Scan.Click,
		StartedAt:      time.Now().UTC(),
		AcceptConf:     cfg.Detector.AcceptConfidence,
		OverlapMerge:   cfg.Detector.OverlapMerge,
		ClickCap:       cfg.Interact.ClickCap,
		DomainListSize: len(window),
	})
	if err != nil {
		return err
	}

	manager, err := browser.NewManager(ctx, logger, cfg.Browser, browser.SnapshotHints{
		Keywords:             detect.AllKeywords(),
		FingerprintSelectors: detect.FingerprintSelectors(),
		MaxRegions:           cfg.Detector.MaxCandidates,
	})
	if err != nil {
		// Record the aborted run before bailing out.
		_ = recorder.Finalize(schemas.RunFailed, time.Now().UTC(), err.Error())
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser manager shutdown reported an error.", zap.Error(err))
		}
	}()

	status, err := scanner.New(logger, cfg, manager, recorder).Run(ctx, window)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("\nRun %s %s. Results in %s\n", runID, status, recorder.Dir())
	return nil
}

func loadDomainList(cfg *config.Config) ([]schemas.Domain, error) {
	if cfg.Scan.Dataset == 2 {
		return domains.FromFile(cfg.Scan.DomainsFile)
	}
	return domains.Builtin(), nil
}

func datasetName(cfg *config.Config) string {
	if cfg.Scan.Dataset == 2 {
		return "file:" + cfg.Scan.DomainsFile
	}
	return "builtin:" + strconv.Itoa(len(domains.Builtin()))
}
