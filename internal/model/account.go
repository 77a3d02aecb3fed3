// Package model defines the banking entities exchanged with the remote API.
package model

// Account is one of the customer's accounts.
type Account struct {
	AccountUID      string `json:"accountUid"`
	AccountType     string `json:"accountType"`
	DefaultCategory string `json:"defaultCategory"`
	Currency        string `json:"currency"`
	CreatedAt       string `json:"createdAt"`
	Name            string `json:"name"`
}

// Amount is a currency code plus an integer count of minor units (pence).
type Amount struct {
	Currency   string `json:"currency"`
	MinorUnits int64  `json:"minorUnits"`
}

// SavingsGoal is a named sub-balance the customer is saving toward.
type SavingsGoal struct {
	SavingsGoalUID string `json:"savingsGoalUid"`
	Name           string `json:"name"`
	TotalSaved     Amount `json:"totalSaved"`
	// Target is nil when the goal has no target amount.
	Target          *Amount `json:"target,omitempty"`
	SavedPercentage int     `json:"savedPercentage,omitempty"`
}

// Progress returns the saved fraction of the target in [0, 1], and false
// when the goal has no usable target.
func (g SavingsGoal) Progress() (float64, bool) {
	if g.Target == nil || g.Target.MinorUnits <= 0 {
		return 0, false
	}
	p := float64(g.TotalSaved.MinorUnits) / float64(g.Target.MinorUnits)
	return min(max(p, 0), 1), true
}
