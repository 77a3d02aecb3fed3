package roundup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/theirongolddev/roundup/internal/model"
	"github.com/theirongolddev/roundup/internal/week"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 18, 14, 30, 0, 0, time.UTC)

// fakeGateway is a scripted Gateway that counts calls.
type fakeGateway struct {
	mu sync.Mutex

	accounts    []model.Account
	accountsErr error
	feeds       map[int][]model.FeedItem // keyed by weeks ago
	feedErr     error
	goals       []model.SavingsGoal
	goalsErr    error
	creditErr   error

	// barrier, when set, makes the feed and goals calls wait for each other.
	barrier *barrier

	calls   map[string]int
	windows []week.Window
	credits []model.TransferRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		accounts: []model.Account{{AccountUID: "A1", DefaultCategory: "C1", Currency: "GBP", Name: "Personal"}},
		feeds: map[int][]model.FeedItem{
			0: {
				{FeedItemUID: "f1", Direction: model.DirectionOut, Source: "MASTER_CARD", Amount: model.Amount{Currency: "GBP", MinorUnits: 230}},
				{FeedItemUID: "f2", Direction: model.DirectionIn, Source: "FASTER_PAYMENTS_IN", Amount: model.Amount{Currency: "GBP", MinorUnits: 500}},
				{FeedItemUID: "f3", Direction: model.DirectionOut, Source: model.SourceInternalTransfer, Amount: model.Amount{Currency: "GBP", MinorUnits: 99}},
			},
			1: {
				{FeedItemUID: "f4", Direction: model.DirectionOut, Source: "MASTER_CARD", Amount: model.Amount{Currency: "GBP", MinorUnits: 230}},
				{FeedItemUID: "f5", Direction: model.DirectionOut, Source: "MASTER_CARD", Amount: model.Amount{Currency: "GBP", MinorUnits: 99}},
			},
		},
		goals: []model.SavingsGoal{{SavingsGoalUID: "G1", Name: "Holiday", TotalSaved: model.Amount{Currency: "GBP", MinorUnits: 1000}}},
		calls: make(map[string]int),
	}
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) ListAccounts(context.Context) ([]model.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["accounts"]++
	return g.accounts, g.accountsErr
}

func (g *fakeGateway) ListTransactions(ctx context.Context, _, _ string, w week.Window) ([]model.FeedItem, error) {
	g.mu.Lock()
	g.calls["feed"]++
	g.windows = append(g.windows, w)
	b, err := g.barrier, g.feedErr
	idx := int(testNow.Sub(w.Max) / week.Length)
	items := g.feeds[idx]
	g.mu.Unlock()

	if b != nil {
		if err := b.wait(ctx); err != nil {
			return nil, err
		}
	}
	return items, err
}

func (g *fakeGateway) ListSavingsGoals(ctx context.Context, _ string) ([]model.SavingsGoal, error) {
	g.mu.Lock()
	g.calls["goals"]++
	b := g.barrier
	goals, err := g.goals, g.goalsErr
	g.mu.Unlock()

	if b != nil {
		if err := b.wait(ctx); err != nil {
			return nil, err
		}
	}
	return goals, err
}

func (g *fakeGateway) CreditSavingsGoal(_ context.Context, acc, goal, key string, amt model.Amount) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["credit"]++
	g.credits = append(g.credits, model.TransferRequest{AccountUID: acc, GoalUID: goal, TransferUID: key, Amount: amt})
	return g.creditErr
}

// barrier releases once n parties have arrived. A party that waits longer
// than the timeout fails, which is what happens if the calls run serially.
type barrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	done    chan struct{}
	timeout time.Duration
}

func newBarrier(n int) *barrier {
	return &barrier{n: n, done: make(chan struct{}), timeout: 2 * time.Second}
}

func (b *barrier) wait(ctx context.Context) error {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.n {
		close(b.done)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.timeout):
		return errors.New("barrier: calls were not in flight together")
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

type recorded struct {
	req   model.TransferRequest
	week  int
	cause error
}

func (r *fakeRecorder) RecordTransfer(_ context.Context, req model.TransferRequest, weekIdx int, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recorded{req: req, week: weekIdx, cause: cause})
	return nil
}

func sequentialKeys() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("key-%d", n)
	}
}

func newTestSession(gw *fakeGateway, rec Recorder) *Session {
	cfg := Config{
		Connect: func(token string) (Gateway, error) { return gw, nil },
		Now:     func() time.Time { return testNow },
		NewKey:  sequentialKeys(),
	}
	if rec != nil {
		cfg.Recorder = rec
	}
	return New(cfg)
}

func readySession(t *testing.T, gw *fakeGateway) *Session {
	t.Helper()
	s := newTestSession(gw, nil)
	require.NoError(t, s.SupplyToken(context.Background(), "token"))
	require.IsType(t, Ready{}, s.State())
	return s
}

func TestSession_StartsAwaitingToken(t *testing.T) {
	s := newTestSession(newFakeGateway(), nil)
	assert.IsType(t, AwaitingToken{}, s.State())
}

func TestSession_EndToEnd(t *testing.T) {
	gw := newFakeGateway()
	s := readySession(t, gw)

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "f1", snap.Items[0].Item.FeedItemUID)
	assert.InDelta(t, 0.70, snap.RoundUp, 1e-9)
	assert.Equal(t, int64(70), snap.RoundUpMinor)
	assert.InDelta(t, 10.00, snap.GoalBalance, 1e-9)
	assert.Equal(t, 0, snap.Week)
	assert.Equal(t, "A1", snap.Account.AccountUID)
	assert.Equal(t, "G1", snap.Goal.SavingsGoalUID)
	assert.Equal(t, "GBP", snap.Currency)

	require.Len(t, gw.windows, 1)
	assert.Equal(t, testNow, gw.windows[0].Max)
}

func TestSession_SupplyTokenBlankFails(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, nil)

	err := s.SupplyToken(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrBlankToken)

	st, ok := s.State().(Failed)
	require.True(t, ok)
	assert.ErrorIs(t, st.Cause, ErrBlankToken)
	assert.Equal(t, 0, gw.count("accounts"))

	// No gateway was bound, so restart goes back to token entry.
	require.NoError(t, s.Restart(context.Background()))
	assert.IsType(t, AwaitingToken{}, s.State())
}

func TestSession_ConnectorErrorFails(t *testing.T) {
	bad := errors.New("malformed token")
	s := New(Config{Connect: func(string) (Gateway, error) { return nil, bad }})

	err := s.SupplyToken(context.Background(), "x y")
	assert.ErrorIs(t, err, bad)
	assert.IsType(t, Failed{}, s.State())
}

func TestSession_SupplyTokenOnlyOnce(t *testing.T) {
	s := readySession(t, newFakeGateway())
	err := s.SupplyToken(context.Background(), "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.IsType(t, Ready{}, s.State())
}

func TestSession_FanOutRunsConcurrently(t *testing.T) {
	gw := newFakeGateway()
	gw.barrier = newBarrier(2)
	s := readySession(t, gw)

	assert.Equal(t, 1, gw.count("feed"))
	assert.Equal(t, 1, gw.count("goals"))
	assert.InDelta(t, 0.70, s.Snapshot().RoundUp, 1e-9)
}

func TestSession_EitherBranchFailureFailsCycle(t *testing.T) {
	for _, tc := range []struct {
		name string
		set  func(*fakeGateway, error)
	}{
		{"feed", func(g *fakeGateway, err error) { g.feedErr = err }},
		{"goals", func(g *fakeGateway, err error) { g.goalsErr = err }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			boom := errors.New("boom")
			gw := newFakeGateway()
			tc.set(gw, boom)
			s := newTestSession(gw, nil)

			err := s.SupplyToken(context.Background(), "token")
			assert.ErrorIs(t, err, boom)
			st, ok := s.State().(Failed)
			require.True(t, ok)
			assert.Equal(t, "boom", st.Message())
			assert.Empty(t, s.Snapshot().Items)
		})
	}
}

func TestSession_EmptyAccountsFails(t *testing.T) {
	gw := newFakeGateway()
	gw.accounts = []model.Account{}
	s := newTestSession(gw, nil)

	require.Error(t, s.SupplyToken(context.Background(), "token"))
	assert.IsType(t, Failed{}, s.State())
	assert.Equal(t, 0, gw.count("feed"))
	assert.Equal(t, 0, gw.count("goals"))
}

func TestSession_EmptyFeedFails(t *testing.T) {
	gw := newFakeGateway()
	gw.feeds[0] = nil
	s := newTestSession(gw, nil)

	require.Error(t, s.SupplyToken(context.Background(), "token"))
	assert.IsType(t, Failed{}, s.State())
}

func TestSession_ZeroTotalIsReady(t *testing.T) {
	gw := newFakeGateway()
	gw.feeds[0] = []model.FeedItem{
		{Direction: model.DirectionOut, Amount: model.Amount{Currency: "GBP", MinorUnits: 500}},
	}
	s := readySession(t, gw)
	assert.Zero(t, s.Snapshot().RoundUp)

	err := s.RequestTransfer(context.Background())
	assert.ErrorIs(t, err, ErrNothingToTransfer)
	assert.IsType(t, Ready{}, s.State())
	assert.Equal(t, 0, gw.count("credit"))
}

func TestSession_TransferWithZeroTotalKeepsSnapshot(t *testing.T) {
	gw := newFakeGateway()
	gw.feeds[0] = []model.FeedItem{
		{Direction: model.DirectionIn, Amount: model.Amount{Currency: "GBP", MinorUnits: 1234}},
	}
	s := readySession(t, gw)
	before := s.Snapshot()
	require.IsType(t, Ready{}, before.State)
	require.Zero(t, before.RoundUpMinor)

	for range 2 {
		err := s.RequestTransfer(context.Background())
		require.ErrorIs(t, err, ErrNothingToTransfer)
	}

	after := s.Snapshot()
	assert.IsType(t, Ready{}, after.State)
	assert.Equal(t, before.Seq, after.Seq)
	assert.Equal(t, before.At, after.At)
	assert.Equal(t, 0, gw.count("credit"))
}

func TestSession_SelectWeekRefetchesFeedOnly(t *testing.T) {
	gw := newFakeGateway()
	s := readySession(t, gw)
	before := s.Snapshot()

	require.NoError(t, s.SelectWeek(context.Background(), 1))

	snap := s.Snapshot()
	assert.IsType(t, Ready{}, snap.State)
	assert.Equal(t, 1, snap.Week)
	require.Len(t, snap.Items, 2)
	assert.InDelta(t, 0.71, snap.RoundUp, 1e-9)
	assert.Equal(t, int64(71), snap.RoundUpMinor)
	assert.Equal(t, before.GoalBalance, snap.GoalBalance)

	assert.Equal(t, 1, gw.count("accounts"))
	assert.Equal(t, 1, gw.count("goals"))
	assert.Equal(t, 2, gw.count("feed"))
	assert.Equal(t, testNow.Add(-week.Length), gw.windows[1].Max)
}

func TestSession_SelectWeekNotifiesSubscribers(t *testing.T) {
	s := readySession(t, newFakeGateway())
	ch, cancel := s.Subscribe()
	defer cancel()
	<-ch // current

	var seen []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range ch {
			seen = append(seen, snap.State.Name())
			if _, ok := snap.State.(Ready); ok {
				return
			}
		}
	}()

	require.NoError(t, s.SelectWeek(context.Background(), 1))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no ready snapshot")
	}
	assert.Equal(t, "ready", seen[len(seen)-1])
}

func TestSession_SelectWeekNegative(t *testing.T) {
	gw := newFakeGateway()
	s := readySession(t, gw)

	err := s.SelectWeek(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidWeek)
	assert.IsType(t, Ready{}, s.State())
	assert.Equal(t, 1, gw.count("feed"))
}

func TestSession_SelectWeekFailure(t *testing.T) {
	gw := newFakeGateway()
	s := readySession(t, gw)
	gw.mu.Lock()
	gw.feedErr = errors.New("feed down")
	gw.mu.Unlock()

	require.Error(t, s.SelectWeek(context.Background(), 1))
	assert.IsType(t, Failed{}, s.State())
}

func TestSession_Transfer(t *testing.T) {
	gw := newFakeGateway()
	rec := &fakeRecorder{}
	s := newTestSession(gw, rec)
	require.NoError(t, s.SupplyToken(context.Background(), "token"))

	require.NoError(t, s.RequestTransfer(context.Background()))

	st, ok := s.State().(TransferComplete)
	require.True(t, ok)
	assert.Equal(t, testNow, st.At)

	want := model.TransferRequest{
		AccountUID:  "A1",
		GoalUID:     "G1",
		TransferUID: "key-1",
		Amount:      model.Amount{Currency: "GBP", MinorUnits: 70},
	}
	assert.Equal(t, want, st.Transfer)
	require.Len(t, gw.credits, 1)
	assert.Equal(t, want, gw.credits[0])

	require.Len(t, rec.entries, 1)
	assert.Equal(t, want, rec.entries[0].req)
	assert.NoError(t, rec.entries[0].cause)
}

func TestSession_TransferUsesAccountCurrency(t *testing.T) {
	gw := newFakeGateway()
	gw.accounts[0].Currency = "EUR"
	s := readySession(t, gw)

	require.NoError(t, s.RequestTransfer(context.Background()))
	assert.Equal(t, "EUR", gw.credits[0].Amount.Currency)
}

func TestSession_TransferFallsBackToDefaultCurrency(t *testing.T) {
	gw := newFakeGateway()
	gw.accounts[0].Currency = ""
	s := readySession(t, gw)

	require.NoError(t, s.RequestTransfer(context.Background()))
	assert.Equal(t, DefaultCurrency, gw.credits[0].Amount.Currency)
}

func TestSession_RetryUsesFreshKey(t *testing.T) {
	gw := newFakeGateway()
	gw.creditErr = errors.New("503")
	rec := &fakeRecorder{}
	s := newTestSession(gw, rec)
	s.newKey = NewTransferUID
	ctx := context.Background()

	require.NoError(t, s.SupplyToken(ctx, "token"))
	require.Error(t, s.RequestTransfer(ctx))
	assert.IsType(t, Failed{}, s.State())

	gw.mu.Lock()
	gw.creditErr = nil
	gw.mu.Unlock()

	require.NoError(t, s.Restart(ctx))
	require.NoError(t, s.RequestTransfer(ctx))

	require.Len(t, gw.credits, 2)
	assert.NotEmpty(t, gw.credits[0].TransferUID)
	assert.NotEqual(t, gw.credits[0].TransferUID, gw.credits[1].TransferUID)

	require.Len(t, rec.entries, 2)
	assert.Error(t, rec.entries[0].cause)
	assert.NoError(t, rec.entries[1].cause)
}

func TestSession_FailedAcceptsOnlyRestart(t *testing.T) {
	gw := newFakeGateway()
	gw.goalsErr = errors.New("goals down")
	s := newTestSession(gw, nil)
	ctx := context.Background()
	require.Error(t, s.SupplyToken(ctx, "token"))

	assert.ErrorIs(t, s.SelectWeek(ctx, 1), ErrInvalidTransition)
	assert.ErrorIs(t, s.RequestTransfer(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, s.SupplyToken(ctx, "token"), ErrInvalidTransition)
	assert.IsType(t, Failed{}, s.State())
	assert.Equal(t, 0, gw.count("credit"))

	gw.mu.Lock()
	gw.goalsErr = nil
	gw.mu.Unlock()

	require.NoError(t, s.Restart(ctx))
	assert.IsType(t, Ready{}, s.State())
	assert.Equal(t, 2, gw.count("accounts"))
}

func TestSession_RestartNotAcceptedFromReady(t *testing.T) {
	s := readySession(t, newFakeGateway())
	assert.ErrorIs(t, s.Restart(context.Background()), ErrInvalidTransition)
}

func TestSession_RestartAfterTransferReloadsWeekZero(t *testing.T) {
	gw := newFakeGateway()
	s := readySession(t, gw)
	ctx := context.Background()

	require.NoError(t, s.SelectWeek(ctx, 1))
	require.NoError(t, s.RequestTransfer(ctx))
	assert.Equal(t, int64(71), gw.credits[0].Amount.MinorUnits)

	require.NoError(t, s.Restart(ctx))
	snap := s.Snapshot()
	assert.IsType(t, Ready{}, snap.State)
	assert.Equal(t, 0, snap.Week)
	assert.InDelta(t, 0.70, snap.RoundUp, 1e-9)
	assert.Equal(t, 2, gw.count("accounts"))
	assert.Equal(t, 2, gw.count("goals"))
}

func TestSession_SubscribeDeliversLatest(t *testing.T) {
	s := newTestSession(newFakeGateway(), nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	first := <-ch
	assert.IsType(t, AwaitingToken{}, first.State)

	// Nobody reads while the cycle runs; only the newest snapshot survives.
	require.NoError(t, s.SupplyToken(context.Background(), "token"))
	last := <-ch
	assert.IsType(t, Ready{}, last.State)
	assert.Greater(t, last.Seq, first.Seq)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected snapshot %s", extra.State.Name())
	default:
	}
}

func TestSession_UnsubscribeStopsDelivery(t *testing.T) {
	s := newTestSession(newFakeGateway(), nil)
	ch, cancel := s.Subscribe()
	<-ch
	cancel()
	cancel()

	require.NoError(t, s.SupplyToken(context.Background(), "token"))
	select {
	case <-ch:
		t.Fatal("snapshot after unsubscribe")
	default:
	}
}

func TestSession_SnapshotIsCopy(t *testing.T) {
	s := readySession(t, newFakeGateway())
	snap := s.Snapshot()
	snap.Items[0].RoundUp = 42

	assert.InDelta(t, 0.70, s.Snapshot().Items[0].RoundUp, 1e-9)
}
