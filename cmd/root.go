package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/noticescan/internal/config"
	"github.com/xkilldash9x/noticescan/internal/observability"
)

var (
	cfgFile string

	// cfg is populated in PersistentPreRunE and shared by the subcommands.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "noticescan",
	Short:   "noticescan surveys websites for cookie consent notices using a real browser.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			if _, err := os.Stat("config.yaml"); err == nil {
				path = "config.yaml"
			}
		}

		loaded, err := config.Load(viper.GetViper(), path)
		if err != nil {
			observability.InitializeLogger(config.LoggingConfig{Level: "info", Format: "console"})
			return err
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Logging)
		observability.GetLogger().Info("Starting noticescan.", zap.String("version", Version))
		return nil
	},
}

// Execute runs the CLI. It is the only entry point main calls.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newSummaryCmd())
}
