package model

// Feed item directions.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// SourceInternalTransfer marks money moved between the customer's own
// spaces. Such items never generate spare change.
const SourceInternalTransfer = "INTERNAL_TRANSFER"

// FeedItem is one transaction in an account's activity feed.
type FeedItem struct {
	FeedItemUID                   string             `json:"feedItemUid"`
	CategoryUID                   string             `json:"categoryUid"`
	Amount                        Amount             `json:"amount"`
	SourceAmount                  Amount             `json:"sourceAmount"`
	Direction                     string             `json:"direction"`
	UpdatedAt                     string             `json:"updatedAt"`
	TransactionTime               string             `json:"transactionTime"`
	SettlementTime                string             `json:"settlementTime"`
	Source                        string             `json:"source"`
	SourceSubType                 string             `json:"sourceSubType"`
	Status                        string             `json:"status"`
	TransactingApplicationUserUID string             `json:"transactingApplicationUserUid"`
	CounterPartyType              string             `json:"counterPartyType"`
	CounterPartyUID               string             `json:"counterPartyUid"`
	CounterPartyName              string             `json:"counterPartyName"`
	CounterPartySubEntityUID      string             `json:"counterPartySubEntityUid"`
	Reference                     string             `json:"reference"`
	Country                       string             `json:"country"`
	SpendingCategory              string             `json:"spendingCategory"`
	RoundUp                       *AssociatedRoundUp `json:"roundUp,omitempty"`
}

// AssociatedRoundUp is the round-up the bank itself already attached to a
// feed item, if any.
type AssociatedRoundUp struct {
	GoalCategoryUID string `json:"goalCategoryUid"`
	Amount          Amount `json:"amount"`
}

// Eligible reports whether the item counts toward the round-up total:
// outgoing and not an internal transfer.
func (f FeedItem) Eligible() bool {
	return f.Direction == DirectionOut && f.Source != SourceInternalTransfer
}

// FilterEligible returns a new slice holding only eligible items.
func FilterEligible(items []FeedItem) []FeedItem {
	out := make([]FeedItem, 0, len(items))
	for _, it := range items {
		if it.Eligible() {
			out = append(out, it)
		}
	}
	return out
}
