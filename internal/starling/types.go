package starling

import "github.com/theirongolddev/roundup/internal/model"

// accountsResponse is the body of GET /accounts.
type accountsResponse struct {
	Accounts []model.Account `json:"accounts"`
}

// feedItemsResponse is the body of the transactions-between endpoint.
type feedItemsResponse struct {
	FeedItems []model.FeedItem `json:"feedItems"`
}

// savingsGoalsResponse is the body of GET /account/{account}/savings-goals.
type savingsGoalsResponse struct {
	SavingsGoalList []model.SavingsGoal `json:"savingsGoalList"`
}

// topUpRequest is the PUT body for add-money.
type topUpRequest struct {
	Amount model.Amount `json:"amount"`
}
