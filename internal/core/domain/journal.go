package domain

import "time"

type Command string

const (
	CommandCreate Command = "create"
	CommandUpdate Command = "update"
	CommandPay    Command = "pay"
	CommandCancel Command = "cancel"
)

type CommandOutcome string

const (
	OutcomeSucceeded CommandOutcome = "succeeded"
	OutcomeFailed    CommandOutcome = "failed"
)

// JournalEntry records one state-changing command issued against an order.
type JournalEntry struct {
	ID        string
	OrderID   string
	Command   Command
	Outcome   CommandOutcome
	Message   string
	CreatedAt time.Time
}
