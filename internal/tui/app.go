// Package tui provides the interactive Bubble Tea front end for roundup.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/theirongolddev/roundup/internal/amount"
	"github.com/theirongolddev/roundup/internal/cli"
	"github.com/theirongolddev/roundup/internal/config"
	"github.com/theirongolddev/roundup/internal/roundup"
	"github.com/theirongolddev/roundup/internal/tui/components"
	"github.com/theirongolddev/roundup/internal/tui/theme"
	"github.com/theirongolddev/roundup/internal/week"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Driver is the session as seen by the UI: four intents and a snapshot.
type Driver interface {
	Snapshot() roundup.Snapshot
	SupplyToken(ctx context.Context, token string) error
	SelectWeek(ctx context.Context, weeksAgo int) error
	RequestTransfer(ctx context.Context) error
	Restart(ctx context.Context) error
}

// SnapshotMsg carries a session snapshot from the subscription.
type SnapshotMsg roundup.Snapshot

// IntentDoneMsg is sent when an intent returns.
type IntentDoneMsg struct {
	Intent string
	Err    error
}

// Options configures a new App.
type Options struct {
	// Token, when set, is supplied to the session on start.
	Token string
	// NeedSetup shows the setup wizard before anything else.
	NeedSetup bool
	// SaveSetup persists the wizard answers. Required when NeedSetup is set.
	SaveSetup func(SetupValues) error
}

// App is the root Bubble Tea model.
type App struct {
	ctx   context.Context
	drv   Driver
	snaps <-chan roundup.Snapshot
	opts  Options

	snap roundup.Snapshot

	// UI state
	width      int
	height     int
	showHelp   bool
	confirming bool
	notice     string
	cursor     int
	offset     int

	tokenIn textinput.Model
	spinner spinner.Model

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals SetupValues
	setupErr  error
}

const (
	minTerminalWidth = 60
	maxContentWidth  = 140

	// lines used by header, week bar, cards, and status bar in the ready view
	readyOverhead   = 14
	minFeedRows     = 3
	feedPrefixWidth = 2
)

// NewApp creates the TUI model. snaps is the session subscription; the
// caller owns unsubscribing.
func NewApp(ctx context.Context, drv Driver, snaps <-chan roundup.Snapshot, opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	ti := textinput.New()
	ti.Placeholder = "eyJhbGciOi..."
	ti.CharLimit = 4096
	ti.Width = 48
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.Focus()

	a := App{
		ctx:     ctx,
		drv:     drv,
		snaps:   snaps,
		opts:    opts,
		snap:    drv.Snapshot(),
		tokenIn: ti,
		spinner: sp,
	}

	if opts.NeedSetup {
		a.setupVals = SetupValuesFrom(config.DefaultConfig())
		a.setupVals.Token = opts.Token
		a.setupForm = NewSetupForm(&a.setupVals)
	}
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnableMouseCellMotion,
		a.spinner.Tick,
		waitForSnapshot(a.snaps),
	}

	switch {
	case a.setupForm != nil:
		cmds = append(cmds, a.setupForm.Init())
	case strings.TrimSpace(a.opts.Token) != "":
		cmds = append(cmds, a.supplyTokenCmd(a.opts.Token))
	default:
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case SnapshotMsg:
		a.applySnapshot(roundup.Snapshot(msg))
		return a, waitForSnapshot(a.snaps)

	case IntentDoneMsg:
		a.notice = noticeFor(msg)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.MouseMsg:
		return a.updateMouse(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.setupForm != nil {
			return a.updateSetupForm(msg)
		}
		return a.updateKey(msg)
	}

	// Forward unhandled messages to the setup form or the token input
	// (cursor blinks, etc.)
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	if _, ok := a.snap.State.(roundup.AwaitingToken); ok {
		var cmd tea.Cmd
		a.tokenIn, cmd = a.tokenIn.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) applySnapshot(snap roundup.Snapshot) {
	prevWeek := a.snap.Week
	a.snap = snap

	switch snap.State.(type) {
	case roundup.Ready:
		if snap.Week != prevWeek {
			a.cursor, a.offset = 0, 0
		}
		a.clampCursor()
	case roundup.AwaitingToken:
		a.tokenIn.Reset()
		a.tokenIn.Focus()
		a.confirming = false
	default:
		a.confirming = false
	}
}

func (a *App) clampCursor() {
	n := len(a.snap.Items)
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
	rows := a.feedRows()
	if a.cursor < a.offset {
		a.offset = a.cursor
	}
	if a.cursor >= a.offset+rows {
		a.offset = a.cursor - rows + 1
	}
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// The token input receives every printable key.
	if _, ok := a.snap.State.(roundup.AwaitingToken); ok {
		switch key {
		case "esc":
			return a, tea.Quit
		case "enter":
			tok := strings.TrimSpace(a.tokenIn.Value())
			if tok == "" {
				a.notice = "Paste an access token first."
				return a, nil
			}
			a.notice = ""
			return a, a.supplyTokenCmd(tok)
		}
		var cmd tea.Cmd
		a.tokenIn, cmd = a.tokenIn.Update(msg)
		return a, cmd
	}

	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	if a.confirming {
		a.confirming = false
		if key == "y" || key == "Y" {
			return a, a.intentCmd("transfer", a.drv.RequestTransfer)
		}
		a.notice = "Transfer cancelled."
		return a, nil
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "?":
		a.showHelp = true
		return a, nil
	}

	switch a.snap.State.(type) {
	case roundup.Ready:
		return a.updateReadyKey(key)
	case roundup.TransferComplete:
		if key == "enter" || key == "r" {
			a.notice = ""
			return a, a.intentCmd("restart", a.drv.Restart)
		}
	case roundup.Failed:
		if key == "r" || key == "enter" {
			a.notice = ""
			return a, a.intentCmd("restart", a.drv.Restart)
		}
	}
	return a, nil
}

func (a App) updateReadyKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "right", "l":
		return a, a.selectWeekCmd(a.snap.Week + 1)
	case "left", "h":
		if a.snap.Week == 0 {
			return a, nil
		}
		return a, a.selectWeekCmd(a.snap.Week - 1)
	case "0":
		if a.snap.Week == 0 {
			return a, nil
		}
		return a, a.selectWeekCmd(0)
	case "t":
		if a.snap.RoundUpMinor <= 0 {
			a.notice = "Nothing to round up this week."
			return a, nil
		}
		a.notice = ""
		a.confirming = true
		return a, nil
	case "j", "down":
		a.cursor++
		a.clampCursor()
	case "k", "up":
		a.cursor--
		a.clampCursor()
	case "g":
		a.cursor = 0
		a.clampCursor()
	case "G":
		a.cursor = len(a.snap.Items) - 1
		a.clampCursor()
	}
	return a, nil
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if _, ok := a.snap.State.(roundup.Ready); !ok || a.showHelp || a.confirming {
		return a, nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		a.cursor--
		a.clampCursor()
	case tea.MouseButtonWheelDown:
		a.cursor++
		a.clampCursor()
	case tea.MouseButtonLeft:
		if msg.Action != tea.MouseActionPress {
			return a, nil
		}
		// The week bar is the second line.
		if msg.Y == 1 {
			if wk := components.WeekAtX(a.snap.Week, msg.X); wk >= 0 && wk != a.snap.Week {
				return a, a.selectWeekCmd(wk)
			}
		}
	}
	return a, nil
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		if a.opts.SaveSetup != nil {
			a.setupErr = a.opts.SaveSetup(a.setupVals)
		}
		theme.SetActive(a.setupVals.Theme)
		a.setupForm = nil
		if a.setupErr != nil {
			a.notice = fmt.Sprintf("Could not save config: %v", a.setupErr)
		}
		if tok := strings.TrimSpace(a.setupVals.Token); tok != "" {
			return a, a.supplyTokenCmd(tok)
		}
		return a, textinput.Blink

	case huh.StateAborted:
		a.setupForm = nil
		return a, textinput.Blink
	}

	return a, cmd
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}

	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}

	if a.setupForm != nil {
		return a.setupForm.View()
	}

	if a.showHelp {
		return a.viewHelp()
	}

	switch st := a.snap.State.(type) {
	case roundup.AwaitingToken:
		return a.viewToken()
	case roundup.Loading:
		return a.viewLoading(st)
	case roundup.Ready:
		return a.viewReady()
	case roundup.TransferComplete:
		return a.viewComplete(st)
	case roundup.Failed:
		return a.viewFailed(st)
	}
	return ""
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) feedRows() int {
	return max(a.height-readyOverhead, minFeedRows)
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)

	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  roundup needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)

	return padHeight(truncateHeight(msg, h), h)
}

// centered places a bordered card in the middle of the screen.
func (a App) centered(body string, border lipgloss.Color) string {
	t := theme.Active
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 3).
		Render(body)

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) styles() (title, muted, primary, accent lipgloss.Style) {
	t := theme.Active
	title = lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	muted = lipgloss.NewStyle().Foreground(t.TextMuted)
	primary = lipgloss.NewStyle().Foreground(t.TextPrimary)
	accent = lipgloss.NewStyle().Foreground(t.Accent)
	return title, muted, primary, accent
}

func (a App) viewToken() string {
	t := theme.Active
	title, muted, _, accent := a.styles()

	var b strings.Builder
	b.WriteString(title.Render("◈ roundup"))
	b.WriteString(muted.Render(" · spare change to savings"))
	b.WriteString("\n\n")
	b.WriteString(muted.Render("Access token"))
	b.WriteString("\n")
	b.WriteString(a.tokenIn.View())
	b.WriteString("\n\n")
	if a.notice != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Orange).Render(a.notice))
		b.WriteString("\n")
	}
	b.WriteString(accent.Render("[enter]"))
	b.WriteString(muted.Render(" connect  "))
	b.WriteString(accent.Render("[esc]"))
	b.WriteString(muted.Render(" quit"))

	return a.centered(b.String(), t.BorderAccent)
}

func (a App) viewLoading(st roundup.Loading) string {
	t := theme.Active
	title, muted, _, _ := a.styles()

	var what string
	switch st.Reason {
	case roundup.LoadWeek:
		what = "Fetching " + strings.ToLower(week.Label(a.snap.Week)) + "..."
	case roundup.LoadTransfer:
		what = "Moving " + cli.FormatAmount(a.snap.RoundUp, a.snap.Currency) + " to your goal..."
	default:
		what = "Loading accounts and savings goals..."
	}

	var b strings.Builder
	b.WriteString(title.Render("◈ roundup"))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())
	b.WriteString(muted.Render(" " + what))

	return a.centered(b.String(), t.BorderAccent)
}

func (a App) viewComplete(st roundup.TransferComplete) string {
	t := theme.Active
	_, muted, primary, accent := a.styles()
	green := lipgloss.NewStyle().Foreground(t.GreenBright).Bold(true)

	amt := cli.FormatMoney(st.Transfer.Amount.MinorUnits, st.Transfer.Amount.Currency)
	goal := a.snap.Goal.Name
	if goal == "" {
		goal = "your goal"
	}

	var b strings.Builder
	b.WriteString(green.Render("✓ Transferred " + amt))
	b.WriteString(primary.Render(" to " + goal))
	b.WriteString("\n\n")
	b.WriteString(muted.Render("Reference  " + st.Transfer.TransferUID))
	b.WriteString("\n")
	b.WriteString(muted.Render("At         " + st.At.Local().Format("Mon 02 Jan 15:04:05")))
	b.WriteString("\n\n")
	b.WriteString(accent.Render("[enter]"))
	b.WriteString(muted.Render(" start over  "))
	b.WriteString(accent.Render("[q]"))
	b.WriteString(muted.Render(" quit"))

	return a.centered(b.String(), t.Green)
}

func (a App) viewFailed(st roundup.Failed) string {
	t := theme.Active
	_, muted, primary, accent := a.styles()
	red := lipgloss.NewStyle().Foreground(t.Red).Bold(true)

	cause := st.Message()
	if cause == "" {
		cause = "Unknown error"
	}

	var b strings.Builder
	b.WriteString(red.Render("✗ Something went wrong"))
	b.WriteString("\n\n")
	b.WriteString(primary.Width(min(60, a.width-12)).Render(cause))
	b.WriteString("\n\n")
	b.WriteString(accent.Render("[r]"))
	b.WriteString(muted.Render(" retry  "))
	b.WriteString(accent.Render("[q]"))
	b.WriteString(muted.Render(" quit"))

	return a.centered(b.String(), t.Red)
}

func (a App) viewReady() string {
	t := theme.Active
	w := a.contentWidth()
	title, muted, _, _ := a.styles()

	var b strings.Builder

	// Header
	header := " " + title.Render("◈ roundup")
	if name := a.snap.Account.Name; name != "" {
		header += muted.Render(" · " + name)
	}
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(components.RenderWeekBar(a.snap.Week, w))
	b.WriteString("\n\n")

	// Cards
	cur := a.snap.Currency
	roundUps := make([]float64, len(a.snap.Items))
	for i, li := range a.snap.Items {
		roundUps[i] = li.RoundUp
	}
	roundUpDetail := fmt.Sprintf("%d purchases", len(a.snap.Items))
	if spark := components.Sparkline(roundUps, t.Green, 16); spark != "" {
		roundUpDetail += "  " + spark
	}

	goalLabel := "Savings goal"
	if a.snap.Goal.Name != "" {
		goalLabel = a.snap.Goal.Name
	}
	goalDetail := "after transfer " + cli.FormatMoney(a.snap.Goal.TotalSaved.MinorUnits+a.snap.RoundUpMinor, cur)
	if p, ok := a.snap.Goal.Progress(); ok {
		pending := float64(a.snap.RoundUpMinor) / float64(a.snap.Goal.Target.MinorUnits)
		goalDetail = components.GoalBar(p, pending, 12)
	}

	windowValue, windowDetail := week.Label(a.snap.Week), ""
	if win, err := week.For(a.snap.At, a.snap.Week); err == nil {
		windowDetail = cli.FormatWindow(win.Min, win.Max)
	}

	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "Round-up", Value: cli.FormatAmount(a.snap.RoundUp, cur), Detail: roundUpDetail, Accent: t.GreenBright},
		{Label: goalLabel, Value: cli.FormatAmount(a.snap.GoalBalance, cur), Detail: goalDetail},
		{Label: "Window", Value: windowValue, Detail: windowDetail},
	}, w))
	b.WriteString("\n")

	// Feed
	b.WriteString(components.ContentCard("Purchases", a.renderFeed(components.CardInnerWidth(w)), w))
	b.WriteString("\n")

	// Prompt / notice line
	switch {
	case a.confirming:
		prompt := fmt.Sprintf(" Transfer %s to %s? [y/N]",
			cli.FormatAmount(a.snap.RoundUp, cur), goalLabel)
		b.WriteString(lipgloss.NewStyle().Foreground(t.Yellow).Bold(true).Render(prompt))
	case a.notice != "":
		b.WriteString(lipgloss.NewStyle().Foreground(t.Orange).Render(" " + a.notice))
	}
	b.WriteString("\n")

	hints := "[←/→] week  [j/k] scroll  [t]ransfer  [?]help  [q]uit"
	status := ""
	if !a.snap.At.IsZero() {
		status = "Updated " + a.snap.At.Local().Format("15:04")
	}
	content := b.String()
	content = padHeight(truncateHeight(content, a.height-1), a.height-1)
	return content + "\n" + components.RenderStatusBar(w, hints, status)
}

func (a App) renderFeed(width int) string {
	t := theme.Active
	if len(a.snap.Items) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextDim).Render("No card purchases this week.")
	}

	const (
		whenW   = 16
		amountW = 10
		roundW  = 8
	)
	nameW := max(width-feedPrefixWidth-whenW-amountW-roundW-3, 8)

	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)
	selStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	greenStyle := lipgloss.NewStyle().Foreground(t.Green)

	var lines []string
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("%*s%-*s %-*s %*s %*s",
		feedPrefixWidth, "", whenW, "When", nameW, "Merchant", amountW, "Amount", roundW, "Round-up")))

	cur := a.snap.Currency
	end := min(a.offset+a.feedRows(), len(a.snap.Items))
	for i := a.offset; i < end; i++ {
		li := a.snap.Items[i]
		name := li.Item.CounterPartyName
		if name == "" {
			name = li.Item.Reference
		}

		prefix, style := "  ", rowStyle
		if i == a.cursor {
			prefix, style = "▸ ", selStyle
		}
		row := prefix +
			padRight(cli.FormatTimestamp(li.Item.TransactionTime), whenW) + " " +
			padRight(cli.Truncate(name, nameW), nameW) + " " +
			padLeft(cli.FormatMoney(li.Item.Amount.MinorUnits, li.Item.Amount.Currency), amountW) + " "
		lines = append(lines, style.Render(row)+
			greenStyle.Render(padLeft(cli.FormatMoney(amount.DeltaMinor(li.Item.Amount.MinorUnits), cur), roundW)))
	}

	if len(a.snap.Items) > end-a.offset {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("  %d–%d of %d", a.offset+1, end, len(a.snap.Items))))
	}
	return strings.Join(lines, "\n")
}

func (a App) viewHelp() string {
	t := theme.Active
	_, muted, primary, _ := a.styles()
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Width(12)

	rows := []struct{ key, desc string }{
		{"← / h", "newer week"},
		{"→ / l", "older week"},
		{"0", "back to this week"},
		{"j / k", "scroll purchases"},
		{"t", "transfer round-up to goal"},
		{"r", "retry after an error"},
		{"enter", "start over after a transfer"},
		{"q", "quit"},
	}

	var b strings.Builder
	b.WriteString(primary.Bold(true).Render("Keys"))
	b.WriteString("\n\n")
	for _, r := range rows {
		b.WriteString(keyStyle.Render(r.key))
		b.WriteString(muted.Render(r.desc))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(muted.Render("Press any key to close"))

	return a.centered(b.String(), t.BorderAccent)
}

// noticeFor turns an intent result into a one-line notice. Failures that
// moved the session to Failed are shown by that view instead.
func noticeFor(msg IntentDoneMsg) string {
	switch {
	case msg.Err == nil:
		return ""
	case errors.Is(msg.Err, roundup.ErrNothingToTransfer):
		return "Nothing to round up this week."
	case errors.Is(msg.Err, roundup.ErrInvalidTransition):
		return "Busy, try again in a moment."
	case errors.Is(msg.Err, roundup.ErrInvalidWeek):
		return "That week does not exist."
	default:
		return ""
	}
}

// waitForSnapshot blocks until the next snapshot arrives from the session.
func waitForSnapshot(sub <-chan roundup.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return nil
		}
		return SnapshotMsg(snap)
	}
}

func (a App) supplyTokenCmd(token string) tea.Cmd {
	return a.intentCmd("supply token", func(ctx context.Context) error {
		return a.drv.SupplyToken(ctx, token)
	})
}

func (a App) selectWeekCmd(weeksAgo int) tea.Cmd {
	return a.intentCmd("select week", func(ctx context.Context) error {
		return a.drv.SelectWeek(ctx, weeksAgo)
	})
}

// intentCmd runs fn off the UI goroutine. State changes arrive through the
// subscription; only the error comes back here.
func (a App) intentCmd(name string, fn func(context.Context) error) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		return IntentDoneMsg{Intent: name, Err: fn(ctx)}
	}
}

func padRight(s string, w int) string {
	if n := lipgloss.Width(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}

func padLeft(s string, w int) string {
	if n := lipgloss.Width(s); n < w {
		return strings.Repeat(" ", w-n) + s
	}
	return s
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if limit < 1 || len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	padding := strings.Repeat("\n", h-len(lines))
	return s + padding
}
