// Package cmd implements the roundup CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/theirongolddev/roundup/internal/config"
	"github.com/theirongolddev/roundup/internal/starling"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [API]")
	base := cfg.API.BaseURL
	if base == "" {
		base = starling.DefaultBaseURL + " (default)"
	}
	fmt.Printf("    Base URL:     %s\n", base)
	fmt.Printf("    Timeout:      %s\n", cfg.Timeout())
	tokenSource := "config"
	if os.Getenv(config.TokenEnv) != "" {
		tokenSource = "$" + config.TokenEnv
	}
	fmt.Printf("    Access token: %s (%s)\n", config.MaskToken(config.GetAccessToken(cfg)), tokenSource)
	fmt.Println()

	fmt.Println("  [Transfer]")
	fmt.Printf("    Fallback currency: %s\n", cfg.Transfer.DefaultCurrency)
	fmt.Println()

	fmt.Println("  [Journal]")
	fmt.Printf("    Enabled: %v\n", cfg.Journal.Enabled)
	fmt.Printf("    Path:    %s\n", cfg.JournalPath())
	fmt.Println()

	fmt.Println("  [Watch]")
	fmt.Printf("    Interval: %s\n", cfg.WatchInterval())
	fmt.Printf("    Address:  %s\n", cfg.Watch.Addr)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Warning: %v\n\n", err)
	}

	fmt.Println("  Run `roundup setup` to reconfigure.")
	return nil
}
