package logging

// Field names shared across components.
const (
	FieldState      = "state"
	FieldFrom       = "from"
	FieldOp         = "op"
	FieldStatus     = "status"
	FieldDuration   = "duration"
	FieldAccount    = "account_uid"
	FieldGoal       = "goal_uid"
	FieldTransferID = "transfer_uid"
	FieldMinorUnits = "minor_units"
	FieldCurrency   = "currency"
	FieldWeek       = "week"
	FieldItems      = "items"
)

// Component logger names.
const (
	ComponentSession = "session"
	ComponentGateway = "gateway"
	ComponentJournal = "journal"
	ComponentWatch   = "watch"
)
