package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/theirongolddev/roundup/internal/amount"
	"github.com/theirongolddev/roundup/internal/cli"
	"github.com/theirongolddev/roundup/internal/roundup"
	"github.com/theirongolddev/roundup/internal/week"

	"github.com/spf13/cobra"
)

var flagWeek int

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a week's purchases and their round-up",
	RunE:  runShow,
}

func init() {
	showCmd.Flags().IntVarP(&flagWeek, "week", "w", 0, "Weeks ago (0 = this week)")
	rootCmd.AddCommand(showCmd)
}

// errNoToken is returned by headless commands that cannot prompt.
var errNoToken = errors.New("no access token: pass --token, set $ROUNDUP_ACCESS_TOKEN, or run `roundup setup`")

// loadWeek supplies the token and, for an older week, reselects it. The
// returned snapshot is Ready.
func loadWeek(ctx context.Context, env *sessionEnv, weeksAgo int) (roundup.Snapshot, error) {
	token := accessToken(env.cfg)
	if token == "" {
		return roundup.Snapshot{}, errNoToken
	}
	if weeksAgo < 0 {
		return roundup.Snapshot{}, roundup.ErrInvalidWeek
	}

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Loading accounts and savings goals...\n")
	}
	if err := env.session.SupplyToken(ctx, token); err != nil {
		return roundup.Snapshot{}, err
	}
	if weeksAgo > 0 {
		if !flagQuiet {
			fmt.Fprintf(os.Stderr, "  Fetching %s...\n", week.Label(weeksAgo))
		}
		if err := env.session.SelectWeek(ctx, weeksAgo); err != nil {
			return roundup.Snapshot{}, err
		}
	}
	return env.session.Snapshot(), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runShow(_ *cobra.Command, _ []string) error {
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
	return nil
}

// printWeek renders the summary and the purchase table for a Ready snapshot.
func printWeek(snap roundup.Snapshot) {
	cur := snap.Currency

	fmt.Println()
	fmt.Println(cli.RenderTitle("ROUND-UP  " + week.Label(snap.Week)))
	fmt.Println()

	if win, err := week.For(snap.At, snap.Week); err == nil {
		fmt.Println(cli.RenderKeyValue("Window", cli.FormatWindow(win.Min, win.Max), false))
	}
	fmt.Println(cli.RenderKeyValue("Account", accountLabel(snap), false))
	fmt.Println(cli.RenderKeyValue("Savings goal", snap.Goal.Name, false))
	fmt.Println(cli.RenderKeyValue("Goal balance", cli.FormatAmount(snap.GoalBalance, cur), false))
	if p, ok := snap.Goal.Progress(); ok {
		fmt.Println(cli.RenderKeyValue("Goal progress",
			fmt.Sprintf("%.0f%% of %s", p*100, cli.FormatMoney(snap.Goal.Target.MinorUnits, cur)), false))
	}
	fmt.Println(cli.RenderKeyValue("Purchases", cli.FormatNumber(int64(len(snap.Items))), false))
	fmt.Println(cli.RenderKeyValue("Round-up", cli.FormatAmount(snap.RoundUp, cur), true))
	fmt.Println()

	if len(snap.Items) == 0 {
		fmt.Println(cli.RenderWarning("No card purchases in this window."))
		fmt.Println()
		return
	}

	rows := make([][]string, 0, len(snap.Items))
	for _, li := range snap.Items {
		name := li.Item.CounterPartyName
		if name == "" {
			name = li.Item.Reference
		}
		rows = append(rows, []string{
			cli.FormatTimestamp(li.Item.TransactionTime),
			cli.Truncate(name, 28),
			cli.FormatDirection(li.Item.Direction),
			cli.FormatMoney(li.Item.Amount.MinorUnits, li.Item.Amount.Currency),
			cli.FormatMoney(amount.DeltaMinor(li.Item.Amount.MinorUnits), cur),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Purchases",
		Headers: []string{"When", "Merchant", "Dir", "Amount", "Round-up"},
		Rows:    rows,
	}))
	fmt.Println()
}

func accountLabel(snap roundup.Snapshot) string {
	if snap.Account.Name != "" {
		return snap.Account.Name
	}
	return snap.Account.AccountUID
}
