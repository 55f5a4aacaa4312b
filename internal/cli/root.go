// Package cli provides the cobra commands for skuwatch: running the monitor,
// sending a test alert, and listing configured products or catalog SKUs.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
)

const defaultConfigPath = "skuwatch.json"

type rootOptions struct {
	configPath       string
	envFile          string
	testMode         bool
	cooldown         time.Duration
	checkInterval    time.Duration
	skuCheckInterval time.Duration
	noBrowser        bool
	logLevel         string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "skuwatch",
		Short: "Watch vendor SKUs and notify when stock changes",
		Long: `skuwatch resolves configured product names to vendor SKUs, polls the vendor
inventory API for each SKU and notifies every enabled channel when a product
comes into or goes out of stock.`,
		Example: `  # Run with skuwatch.json in the current directory
  skuwatch

  # Send one synthetic in-stock alert to every channel
  skuwatch --test

  # List the SKUs the vendor currently lists for a locale
  skuwatch skus --locale de-de`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts, false)
			if err != nil {
				return err
			}
			if opts.testMode {
				return runTestAlert(cmd.Context(), cfg, cmd.OutOrStdout())
			}
			return runMonitor(cmd.Context(), cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Path to the JSON config file")
	flags.StringVar(&opts.envFile, "env-file", "", "Load environment variables from this file (default .env when present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.Flags().BoolVar(&opts.testMode, "test", false, "Initialize channels, send one test alert and exit")
	cmd.Flags().DurationVar(&opts.cooldown, "cooldown", 0, "Pause after an in-stock alert")
	cmd.Flags().DurationVar(&opts.checkInterval, "check-interval", 0, "Target length of one poll cycle")
	cmd.Flags().DurationVar(&opts.skuCheckInterval, "sku-check-interval", 0, "How often the catalog is re-read for SKU changes")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "Never open the product page on in-stock alerts")

	cmd.AddCommand(newProductsCommand(opts), newSkusCommand(opts))
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func loadConfig(cmd *cobra.Command, opts *rootOptions, catalogOnly bool) (*config.Config, error) {
	lo := config.LoadOptions{
		ConfigPath:  opts.configPath,
		Explicit:    cmd.Flags().Changed("config"),
		EnvFile:     opts.envFile,
		CatalogOnly: catalogOnly,
		Overrides: config.Overrides{
			NoBrowser: opts.noBrowser,
			LogLevel:  opts.logLevel,
		},
	}
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" && !lo.Explicit {
		lo.ConfigPath, lo.Explicit = path, true
	}
	if cmd.Flags().Changed("cooldown") {
		lo.Overrides.Cooldown = &opts.cooldown
	}
	if cmd.Flags().Changed("check-interval") {
		lo.Overrides.CheckInterval = &opts.checkInterval
	}
	if cmd.Flags().Changed("sku-check-interval") {
		lo.Overrides.SKURefreshInterval = &opts.skuCheckInterval
	}
	if catalogOnly {
		if locale, err := cmd.Flags().GetString("locale"); err == nil {
			lo.Overrides.Locale = locale
		}
	}
	return config.Load(lo)
}
