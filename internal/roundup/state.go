package roundup

import (
	"time"

	"github.com/theirongolddev/roundup/internal/model"
)

// State is the sealed set of session states. The concrete types are
// AwaitingToken, Loading, Ready, TransferComplete, and Failed; consumers
// switch on the concrete type.
type State interface {
	// Name is a stable snake_case identifier for logs and JSON.
	Name() string
	isState()
}

// AwaitingToken is the initial state: no access token yet.
type AwaitingToken struct{}

// LoadReason says why the session is loading.
type LoadReason int

const (
	// LoadSession is the full cycle: accounts, then feed and goals.
	LoadSession LoadReason = iota
	// LoadWeek refetches only the feed for a newly selected week.
	LoadWeek
	// LoadTransfer is an in-flight savings goal credit.
	LoadTransfer
)

func (r LoadReason) String() string {
	switch r {
	case LoadWeek:
		return "week"
	case LoadTransfer:
		return "transfer"
	default:
		return "session"
	}
}

// Loading means remote calls are in flight. No intent is accepted.
type Loading struct {
	Reason LoadReason
}

// Ready means the feed, round-up total, and goal balance are available.
type Ready struct{}

// TransferComplete means the last transfer succeeded.
type TransferComplete struct {
	Transfer model.TransferRequest
	At       time.Time
}

// Failed carries the cause of the last failure. Only Restart leaves it.
type Failed struct {
	Cause error
}

func (AwaitingToken) Name() string    { return "awaiting_token" }
func (Loading) Name() string          { return "loading" }
func (Ready) Name() string            { return "ready" }
func (TransferComplete) Name() string { return "transfer_complete" }
func (Failed) Name() string           { return "failed" }

func (AwaitingToken) isState()    {}
func (Loading) isState()          {}
func (Ready) isState()            {}
func (TransferComplete) isState() {}
func (Failed) isState()           {}

// Message returns the human-readable cause, or "" when none is known.
func (f Failed) Message() string {
	if f.Cause == nil {
		return ""
	}
	return f.Cause.Error()
}

// LineItem is an eligible feed item and the spare change it produces.
type LineItem struct {
	Item    model.FeedItem
	RoundUp float64
}

// Snapshot is an immutable copy of everything the presentation layer needs.
type Snapshot struct {
	Seq   uint64
	At    time.Time
	State State

	Account model.Account
	Goal    model.SavingsGoal
	Week    int

	// Items holds only eligible feed items, in feed order.
	Items        []LineItem
	RoundUp      float64
	RoundUpMinor int64
	GoalBalance  float64
	Currency     string
}
