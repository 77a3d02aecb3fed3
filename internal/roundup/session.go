// Package roundup drives the round-up flow: it loads the active account, a
// week of transactions, and the savings goal, computes the spare change, and
// sweeps it into the goal. All of it runs as one explicit state machine.
package roundup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/theirongolddev/roundup/internal/amount"
	"github.com/theirongolddev/roundup/internal/logging"
	"github.com/theirongolddev/roundup/internal/model"
	"github.com/theirongolddev/roundup/internal/week"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultCurrency is used for transfers when the account reports none.
const DefaultCurrency = "GBP"

var (
	// ErrInvalidTransition is returned for an intent the current state does
	// not accept. The state is left unchanged.
	ErrInvalidTransition = errors.New("roundup: intent not valid in current state")
	// ErrBlankToken is the validation failure for an empty access token.
	ErrBlankToken = errors.New("roundup: access token is blank")
	// ErrInvalidWeek is returned by SelectWeek for a negative index.
	ErrInvalidWeek = errors.New("roundup: week index must be >= 0")
	// ErrNothingToTransfer is returned by RequestTransfer when the round-up
	// total is zero. The session stays Ready.
	ErrNothingToTransfer = errors.New("roundup: nothing to transfer")
)

// Config wires a Session to its collaborators.
type Config struct {
	// Connect is required.
	Connect Connector
	// Now defaults to time.Now.
	Now func() time.Time
	// NewKey defaults to NewTransferUID.
	NewKey func() string
	// Recorder is optional.
	Recorder Recorder
	// DefaultCurrency defaults to DefaultCurrency.
	DefaultCurrency string
	Logger          *zap.Logger
}

// Session owns the session state. Every mutation happens under mu, and an
// intent is only accepted from the states listed on it, so remote calls of
// different intents never interleave.
type Session struct {
	connect  Connector
	now      func() time.Time
	newKey   func() string
	recorder Recorder
	currency string
	log      *zap.Logger

	mu    sync.Mutex
	gw    Gateway
	state State
	seq   uint64

	account model.Account
	goal    model.SavingsGoal
	weekIdx int
	lines   []LineItem
	total   float64
	balance float64

	nextSubID int
	subs      map[int]chan Snapshot
}

// New returns a session in AwaitingToken.
func New(cfg Config) *Session {
	s := &Session{
		connect:  cfg.Connect,
		now:      cfg.Now,
		newKey:   cfg.NewKey,
		recorder: cfg.Recorder,
		currency: cfg.DefaultCurrency,
		log:      logging.OrNop(cfg.Logger).Named(logging.ComponentSession),
		state:    AwaitingToken{},
		subs:     make(map[int]chan Snapshot),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newKey == nil {
		s.newKey = NewTransferUID
	}
	if s.currency == "" {
		s.currency = DefaultCurrency
	}
	return s
}

// Snapshot returns the current state and derived data.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns just the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel receiving a snapshot after every transition,
// starting with the current one. A slow reader only ever misses
// intermediate snapshots, never the latest. Call cancel to unsubscribe.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// SupplyToken validates token, binds a gateway, and runs the load cycle.
// Only accepted in AwaitingToken. A blank or malformed token moves the
// session to Failed without any remote call.
func (s *Session) SupplyToken(ctx context.Context, token string) error {
	s.mu.Lock()
	if _, ok := s.state.(AwaitingToken); !ok {
		s.mu.Unlock()
		return s.reject("supply token")
	}

	if strings.TrimSpace(token) == "" {
		s.failLocked(ErrBlankToken)
		s.mu.Unlock()
		return ErrBlankToken
	}

	gw, err := s.connect(token)
	if err != nil {
		s.failLocked(err)
		s.mu.Unlock()
		return err
	}
	s.gw = gw
	s.resetLocked()
	s.transitionLocked(Loading{Reason: LoadSession})
	s.mu.Unlock()

	return s.load(ctx, gw)
}

// SelectWeek refetches the feed for weeksAgo and recomputes the total.
// Accounts and the savings goal are not refetched. Only accepted in Ready.
func (s *Session) SelectWeek(ctx context.Context, weeksAgo int) error {
	s.mu.Lock()
	if _, ok := s.state.(Ready); !ok {
		s.mu.Unlock()
		return s.reject("select week")
	}
	if weeksAgo < 0 {
		s.mu.Unlock()
		return ErrInvalidWeek
	}
	gw, acct := s.gw, s.account
	s.transitionLocked(Loading{Reason: LoadWeek})
	s.mu.Unlock()

	lines, err := s.fetchFeed(ctx, gw, acct, weeksAgo)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failLocked(err)
		return err
	}
	s.applyFeedLocked(weeksAgo, lines)
	s.transitionLocked(Ready{})
	return nil
}

// RequestTransfer credits the savings goal with the current round-up total
// under a freshly generated idempotency key. Only accepted in Ready.
func (s *Session) RequestTransfer(ctx context.Context) error {
	s.mu.Lock()
	if _, ok := s.state.(Ready); !ok {
		s.mu.Unlock()
		return s.reject("request transfer")
	}

	minor := amount.ToMinorUnits(s.total)
	if minor <= 0 {
		// Refused before any remote call; state and Seq are untouched.
		s.mu.Unlock()
		return ErrNothingToTransfer
	}

	req := model.TransferRequest{
		AccountUID:  s.account.AccountUID,
		GoalUID:     s.goal.SavingsGoalUID,
		TransferUID: s.newKey(),
		Amount:      model.Amount{Currency: s.transferCurrencyLocked(), MinorUnits: minor},
	}
	gw, weekIdx := s.gw, s.weekIdx
	s.transitionLocked(Loading{Reason: LoadTransfer})
	s.mu.Unlock()

	err := gw.CreditSavingsGoal(ctx, req.AccountUID, req.GoalUID, req.TransferUID, req.Amount)
	s.record(ctx, req, weekIdx, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failLocked(err)
		return err
	}
	s.log.Info("transfer complete",
		zap.String(logging.FieldTransferID, req.TransferUID),
		zap.Int64(logging.FieldMinorUnits, req.Amount.MinorUnits),
		zap.String(logging.FieldCurrency, req.Amount.Currency),
	)
	s.transitionLocked(TransferComplete{Transfer: req, At: s.now()})
	return nil
}

// Restart reruns the full load cycle from the account list, discarding all
// derived state. Accepted in TransferComplete and Failed. When no gateway
// was ever bound (the token itself failed) the session returns to
// AwaitingToken instead.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	switch s.state.(type) {
	case TransferComplete, Failed:
	default:
		s.mu.Unlock()
		return s.reject("restart")
	}

	s.resetLocked()
	gw := s.gw
	if gw == nil {
		s.transitionLocked(AwaitingToken{})
		s.mu.Unlock()
		return nil
	}
	s.transitionLocked(Loading{Reason: LoadSession})
	s.mu.Unlock()

	return s.load(ctx, gw)
}

// load is the full cycle: list accounts, pick the first, then fetch the
// week 0 feed and the savings goals concurrently and wait for both.
func (s *Session) load(ctx context.Context, gw Gateway) error {
	accounts, err := gw.ListAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = errors.New("roundup: no accounts found")
	}
	if err != nil {
		s.mu.Lock()
		s.failLocked(err)
		s.mu.Unlock()
		return err
	}
	acct := accounts[0]

	var (
		lines []LineItem
		goals []model.SavingsGoal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lines, err = s.fetchFeed(gctx, gw, acct, 0)
		return err
	})
	g.Go(func() error {
		var err error
		goals, err = gw.ListSavingsGoals(gctx, acct.AccountUID)
		if err == nil && len(goals) == 0 {
			err = errors.New("roundup: no savings goals found")
		}
		return err
	})
	err = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failLocked(err)
		return err
	}

	s.account = acct
	s.goal = goals[0]
	s.balance = amount.MinorToFloat(s.goal.TotalSaved.MinorUnits)
	s.applyFeedLocked(0, lines)
	s.transitionLocked(Ready{})
	return nil
}

// fetchFeed loads the feed for one week and reduces it to eligible line items.
func (s *Session) fetchFeed(ctx context.Context, gw Gateway, acct model.Account, weeksAgo int) ([]LineItem, error) {
	w, err := week.For(s.now(), weeksAgo)
	if err != nil {
		return nil, err
	}
	items, err := gw.ListTransactions(ctx, acct.AccountUID, acct.DefaultCategory, w)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("roundup: no transactions found in the timeframe queried")
	}
	lines := LineItems(items)
	s.log.Debug("feed loaded",
		zap.Int(logging.FieldWeek, weeksAgo),
		zap.Int(logging.FieldItems, len(items)),
		zap.Int("eligible", len(lines)),
	)
	return lines, nil
}

func (s *Session) record(ctx context.Context, req model.TransferRequest, weekIdx int, cause error) {
	if s.recorder == nil {
		return
	}
	// The journal is best-effort; a caller cancellation must not lose the entry.
	if err := s.recorder.RecordTransfer(context.WithoutCancel(ctx), req, weekIdx, cause); err != nil {
		s.log.Warn("recording transfer", zap.String(logging.FieldTransferID, req.TransferUID), zap.Error(err))
	}
}

func (s *Session) reject(intent string) error {
	st := s.State()
	s.log.Debug("intent rejected", zap.String("intent", intent), zap.String(logging.FieldState, st.Name()))
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, intent, st.Name())
}

func (s *Session) transferCurrencyLocked() string {
	if s.account.Currency != "" {
		return s.account.Currency
	}
	return s.currency
}

func (s *Session) applyFeedLocked(weeksAgo int, lines []LineItem) {
	s.weekIdx = weeksAgo
	s.lines = lines
	s.total = Total(lines)
}

// resetLocked drops everything derived from a previous cycle.
func (s *Session) resetLocked() {
	s.account = model.Account{}
	s.goal = model.SavingsGoal{}
	s.weekIdx = 0
	s.lines = nil
	s.total = 0
	s.balance = 0
}

func (s *Session) failLocked(cause error) {
	s.log.Warn("session failed", zap.String(logging.FieldFrom, s.state.Name()), zap.Error(cause))
	s.transitionLocked(Failed{Cause: cause})
}

func (s *Session) transitionLocked(next State) {
	from := s.state
	s.state = next
	s.seq++
	s.log.Debug("transition", zap.String(logging.FieldFrom, from.Name()), zap.String(logging.FieldState, next.Name()))
	s.publishLocked(s.snapshotLocked())
}

func (s *Session) snapshotLocked() Snapshot {
	lines := make([]LineItem, len(s.lines))
	copy(lines, s.lines)
	return Snapshot{
		Seq:          s.seq,
		At:           s.now(),
		State:        s.state,
		Account:      s.account,
		Goal:         s.goal,
		Week:         s.weekIdx,
		Items:        lines,
		RoundUp:      s.total,
		RoundUpMinor: TotalMinor(s.lines),
		GoalBalance:  s.balance,
		Currency:     s.transferCurrencyLocked(),
	}
}

// publishLocked delivers snap to every subscriber, replacing an unread
// older snapshot if the buffer is full.
func (s *Session) publishLocked(snap Snapshot) {
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
