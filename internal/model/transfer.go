package model

// TransferRequest is one attempt to credit a savings goal. TransferUID is the
// idempotency key and is generated fresh for every attempt.
type TransferRequest struct {
	AccountUID  string
	GoalUID     string
	TransferUID string
	Amount      Amount
}
