package port

import (
	"context"

	"github.com/rl1809/order-console/internal/core/domain"
)

type CommandJournal interface {
	// Record appends one command outcome
	Record(ctx context.Context, entry domain.JournalEntry) error

	// ListByOrder returns the entries of an order, oldest first
	ListByOrder(ctx context.Context, orderID string) ([]domain.JournalEntry, error)
}
