// Package config defines the scanner's runtime configuration and its viper
// bindings. Values come from, in increasing precedence: built-in defaults,
// the config file, NOTICESCAN_* environment variables, and command flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "NOTICESCAN"

// Config is the root configuration tree.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Detector DetectorConfig `mapstructure:"detector"`
	Interact InteractConfig `mapstructure:"interaction"`
}

// LoggingConfig controls the zap logger and optional file rotation.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "console" or "json"
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// BrowserConfig describes the remote browser endpoint and tab pool.
type BrowserConfig struct {
	DebuggerURL       string        `mapstructure:"debugger_url"`
	TabPoolSize       int           `mapstructure:"tab_pool_size"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	QuietPeriod       time.Duration `mapstructure:"quiet_period"`
	SettleTimeout     time.Duration `mapstructure:"settle_timeout"`
}

// ScanConfig controls the orchestration of one run.
type ScanConfig struct {
	Dataset     int     `mapstructure:"dataset"`
	DomainsFile string  `mapstructure:"domains_file"`
	Start       int     `mapstructure:"start"`
	End         int     `mapstructure:"end"`
	ResultsDir  string  `mapstructure:"results_dir"`
	Click       bool    `mapstructure:"click"`
	Screenshots bool    `mapstructure:"screenshots"`
	RateLimit   float64 `mapstructure:"rate_limit"` // navigations per second, 0 disables
}

// DetectorConfig holds the classification thresholds.
type DetectorConfig struct {
	AcceptConfidence float64 `mapstructure:"accept_confidence"`
	OverlapMerge     float64 `mapstructure:"overlap_merge"`
	ModalCoverage    float64 `mapstructure:"modal_coverage"`
	MaxCandidates    int     `mapstructure:"max_candidates"`
}

// InteractConfig bounds the click phase.
type InteractConfig struct {
	ClickCap      int           `mapstructure:"click_cap"`
	PostClickWait time.Duration `mapstructure:"post_click_wait"`
}

// SetDefaults registers every default on v so partial config files work.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)

	v.SetDefault("browser.debugger_url", "http://127.0.0.1:9222")
	v.SetDefault("browser.tab_pool_size", 2)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.quiet_period", 2*time.Second)
	v.SetDefault("browser.settle_timeout", 10*time.Second)

	v.SetDefault("scan.dataset", 1)
	v.SetDefault("scan.domains_file", "")
	v.SetDefault("scan.start", 1)
	v.SetDefault("scan.end", 0)
	v.SetDefault("scan.results_dir", "results")
	v.SetDefault("scan.click", false)
	v.SetDefault("scan.screenshots", false)
	v.SetDefault("scan.rate_limit", 0.0)

	v.SetDefault("detector.accept_confidence", 0.5)
	v.SetDefault("detector.overlap_merge", 0.5)
	v.SetDefault("detector.modal_coverage", 0.4)
	v.SetDefault("detector.max_candidates", 8)

	v.SetDefault("interaction.click_cap", 5)
	v.SetDefault("interaction.post_click_wait", 2*time.Second)
}

// Load reads the config file at path (optional), merges environment
// variables, and unmarshals into a validated Config.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the scanner cannot run with.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Browser.DebuggerURL == "" {
		return fmt.Errorf("browser.debugger_url must be set")
	}
	if c.Browser.TabPoolSize < 1 {
		return fmt.Errorf("browser.tab_pool_size must be at least 1, got %d", c.Browser.TabPoolSize)
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be positive")
	}
	if c.Browser.QuietPeriod <= 0 {
		return fmt.Errorf("browser.quiet_period must be positive")
	}
	if c.Browser.SettleTimeout <= 0 {
		return fmt.Errorf("browser.settle_timeout must be positive")
	}
	if c.Scan.Dataset != 1 && c.Scan.Dataset != 2 {
		return fmt.Errorf("scan.dataset must be 1 or 2, got %d", c.Scan.Dataset)
	}
	if c.Scan.Dataset == 2 && c.Scan.DomainsFile == "" {
		return fmt.Errorf("scan.domains_file is required for dataset 2")
	}
	if c.Scan.Start < 1 {
		return fmt.Errorf("scan.start must be at least 1, got %d", c.Scan.Start)
	}
	if c.Scan.End != 0 && c.Scan.End < c.Scan.Start {
		return fmt.Errorf("scan.end (%d) must not precede scan.start (%d)", c.Scan.End, c.Scan.Start)
	}
	if c.Detector.AcceptConfidence < 0 || c.Detector.AcceptConfidence > 1 {
		return fmt.Errorf("detector.accept_confidence must be in [0,1], got %g", c.Detector.AcceptConfidence)
	}
	if c.Detector.OverlapMerge <= 0 || c.Detector.OverlapMerge > 1 {
		return fmt.Errorf("detector.overlap_merge must be in (0,1], got %g", c.Detector.OverlapMerge)
	}
	if c.Detector.MaxCandidates < 1 {
		return fmt.Errorf("detector.max_candidates must be at least 1")
	}
	if c.Interact.ClickCap < 0 {
		return fmt.Errorf("interaction.click_cap must not be negative")
	}
	if c.Scan.RateLimit < 0 {
		return fmt.Errorf("scan.rate_limit must not be negative")
	}
	return nil
}
