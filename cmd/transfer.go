package cmd

import (
	"errors"
	"fmt"

	"github.com/theirongolddev/roundup/internal/cli"
	"github.com/theirongolddev/roundup/internal/roundup"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var flagYes bool

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Move a week's round-up into the savings goal",
	RunE:  runTransfer,
}

func init() {
	transferCmd.Flags().IntVarP(&flagWeek, "week", "w", 0, "Weeks ago (0 = this week)")
	transferCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(transferCmd)
}

func runTransfer(_ *cobra.Command, _ []string) error {
	env, err := newSessionEnv(false)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := signalContext()
	defer cancel()

	snap, err := loadWeek(ctx, env, flagWeek)
	if err != nil {
		return err
	}
	printWeek(snap)

	if snap.RoundUpMinor <= 0 {
		fmt.Println(cli.RenderWarning("Nothing to round up, no transfer made."))
		return nil
	}

	amt := cli.FormatAmount(snap.RoundUp, snap.Currency)
	if !flagYes {
		ok := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Transfer %s to %s?", amt, snap.Goal.Name)).
			Affirmative("Transfer").
			Negative("Cancel").
			Value(&ok).
			Run()
		if err != nil && !errors.Is(err, huh.ErrUserAborted) {
			return err
		}
		if !ok {
			fmt.Println("  Cancelled, no transfer made.")
			return nil
		}
	}

	if err := env.session.RequestTransfer(ctx); err != nil {
		if errors.Is(err, roundup.ErrNothingToTransfer) {
			fmt.Println(cli.RenderWarning("Nothing to round up, no transfer made."))
			return nil
		}
		fmt.Println(cli.RenderError("Transfer failed: " + err.Error()))
		return err
	}

	done, ok := env.session.State().(roundup.TransferComplete)
	if !ok {
		return fmt.Errorf("unexpected session state %s", env.session.State().Name())
	}
	fmt.Println()
	fmt.Println(cli.RenderKeyValue("Transferred",
		cli.FormatMoney(done.Transfer.Amount.MinorUnits, done.Transfer.Amount.Currency), true))
	fmt.Println(cli.RenderKeyValue("Savings goal", snap.Goal.Name, false))
	fmt.Println(cli.RenderKeyValue("Reference", done.Transfer.TransferUID, false))
	fmt.Println()
	return nil
}
