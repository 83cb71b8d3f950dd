/**
 * @description
 * This file defines the fine model and its DTOs. A fine is a payable
 * obligation created by an inspector (or admin) against a player account.
 * Once paid it is terminal: payment flips is_paid exactly once, atomically
 * with the payer's balance decrement and the FINE ledger entry.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Fine maps to the `fines` table.
type Fine struct {
	ID                  uuid.UUID  `json:"id"`
	UserID              uuid.UUID  `json:"user_id"`
	IssuedByInspectorID uuid.UUID  `json:"issued_by_inspector_id"`
	Amount              int64      `json:"amount"`
	Reason              *string    `json:"reason,omitempty"`
	DueDate             time.Time  `json:"due_date"`
	IsPaid              bool       `json:"is_paid"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// IssueFineRequest is the DTO for POST /inspector/issue-fine.
type IssueFineRequest struct {
	TargetCardNumber int    `json:"target_card_number"`
	Amount           int64  `json:"amount"`
	Reason           string `json:"reason,omitempty"`
	DaysUntilDue     int    `json:"days_until_due"`
}

// FineDueDate computes the due date for a fine issued at issuedAt with the
// given number of calendar days until due: the end of that calendar day
// (23:59:59.999), in issuedAt's location.
func FineDueDate(issuedAt time.Time, daysUntilDue int) time.Time {
	day := issuedAt.AddDate(0, 0, daysUntilDue)
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 999_000_000, day.Location())
}
