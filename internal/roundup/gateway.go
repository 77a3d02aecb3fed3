package roundup

import (
	"context"

	"github.com/theirongolddev/roundup/internal/model"
	"github.com/theirongolddev/roundup/internal/week"

	"github.com/google/uuid"
)

// Gateway is the remote API as seen by the session. Each call performs one
// remote request and returns either a value or a classified failure. Empty
// lists are reported as failures, never as zero-length successes.
type Gateway interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListTransactions(ctx context.Context, accountUID, categoryUID string, w week.Window) ([]model.FeedItem, error)
	ListSavingsGoals(ctx context.Context, accountUID string) ([]model.SavingsGoal, error)
	CreditSavingsGoal(ctx context.Context, accountUID, goalUID, transferUID string, amt model.Amount) error
}

// Connector binds an access token to a Gateway. It validates the token and
// must not perform any remote call.
type Connector func(token string) (Gateway, error)

// Recorder receives every transfer attempt, successful (cause == nil) or not.
type Recorder interface {
	RecordTransfer(ctx context.Context, req model.TransferRequest, weekIdx int, cause error) error
}

// NewTransferUID returns a random idempotency key.
func NewTransferUID() string {
	return uuid.NewString()
}
