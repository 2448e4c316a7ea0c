package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rl1809/order-console/internal/core/domain"
)

const createJournalTable = `
CREATE TABLE IF NOT EXISTS command_journal (
	id         CHAR(36)     NOT NULL PRIMARY KEY,
	order_id   VARCHAR(64)  NOT NULL,
	command    VARCHAR(16)  NOT NULL,
	outcome    VARCHAR(16)  NOT NULL,
	message    VARCHAR(512) NOT NULL DEFAULT '',
	created_at DATETIME(6)  NOT NULL,
	INDEX idx_command_journal_order (order_id, created_at)
)`

// MySQLJournal is an append-only log of commands the coordinator issued.
type MySQLJournal struct {
	db *sql.DB
}

func NewMySQLJournal(db *sql.DB) *MySQLJournal {
	return &MySQLJournal{db: db}
}

// EnsureSchema creates the journal table when missing.
func (m *MySQLJournal) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createJournalTable); err != nil {
		return fmt.Errorf("create journal table: %w", err)
	}
	return nil
}

func (m *MySQLJournal) Record(ctx context.Context, entry domain.JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO command_journal (id, order_id, command, outcome, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrderID, entry.Command, entry.Outcome, truncate(entry.Message, 512), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (m *MySQLJournal) ListByOrder(ctx context.Context, orderID string) ([]domain.JournalEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, command, outcome, message, created_at
		FROM command_journal WHERE order_id = ? ORDER BY created_at`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Command, &e.Outcome, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
