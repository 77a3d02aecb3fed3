package cmd

import (
	"errors"
	"fmt"

	"github.com/theirongolddev/roundup/internal/config"
	"github.com/theirongolddev/roundup/internal/tui"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Load existing config or defaults
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	vals := tui.SetupValuesFrom(cfg)
	// Never prefill the secret; blank keeps the stored token.
	vals.Token = ""

	if existing := config.GetAccessToken(cfg); existing != "" {
		fmt.Printf("\n  Current token: %s\n\n", config.MaskToken(existing))
	}

	if err := tui.NewSetupForm(&vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled, nothing saved.")
			return nil
		}
		return err
	}

	vals.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `roundup setup` anytime to reconfigure.")
	fmt.Println()

	return nil
}
