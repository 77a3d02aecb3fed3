package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/theirongolddev/roundup/internal/config"
	"github.com/theirongolddev/roundup/internal/tui"
	"github.com/theirongolddev/roundup/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive dashboard",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	env, err := newSessionEnv(true)
	if err != nil {
		return err
	}
	defer env.Close()

	theme.SetActive(env.cfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	snaps, unsubscribe := env.session.Subscribe()
	defer unsubscribe()

	token := accessToken(env.cfg)
	app := tui.NewApp(ctx, env.session, snaps, tui.Options{
		Token:     token,
		NeedSetup: token == "" && !config.Exists(),
		SaveSetup: saveSetup,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// saveSetup merges wizard answers into the stored config.
func saveSetup(vals tui.SetupValues) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	vals.Apply(&cfg)
	return config.Save(cfg)
}
