package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/theirongolddev/roundup/internal/cli"
	"github.com/theirongolddev/roundup/internal/store"
	"github.com/theirongolddev/roundup/internal/week"

	"github.com/spf13/cobra"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded transfer attempts",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Max attempts to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	j, err := store.Open(cfg.JournalPath(), log)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	entries, err := j.List(ctx, flagHistoryLimit)
	if err != nil {
		return err
	}
	totals, err := j.Totals(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("TRANSFER HISTORY"))
	fmt.Println()

	if len(entries) == 0 {
		fmt.Println("  No transfers recorded yet.")
		if !cfg.Journal.Enabled {
			fmt.Println(cli.RenderWarning("The journal is disabled in config."))
		}
		fmt.Println()
		return nil
	}

	fmt.Println(cli.RenderKeyValue("Attempts", cli.FormatNumber(int64(totals.Attempts)), false))
	fmt.Println(cli.RenderKeyValue("Succeeded", cli.FormatNumber(int64(totals.Succeeded)), false))
	currencies := make([]string, 0, len(totals.MinorUnits))
	for c := range totals.MinorUnits {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		fmt.Println(cli.RenderKeyValue("Saved ("+c+")", cli.FormatMoney(totals.MinorUnits[c], c), true))
	}
	fmt.Println()

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		outcome := "ok"
		if !e.Succeeded() {
			outcome = cli.Truncate("failed: "+e.Error, 36)
		}
		rows = append(rows, []string{
			e.RecordedAt.Local().Format("2006-01-02 15:04"),
			week.Label(e.Week),
			cli.FormatMoney(e.Amount.MinorUnits, e.Amount.Currency),
			cli.Truncate(e.TransferUID, 13),
			outcome,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Recorded", "Week", "Amount", "Reference", "Outcome"},
		Rows:    rows,
	}))
	fmt.Println()
	return nil
}
