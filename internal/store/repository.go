/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access operations required by the economy-service. The interface decouples
 * the business logic from the PostgreSQL implementation and lets service
 * tests substitute hand-rolled stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For internal identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/playvault/economy-service/internal/domain"
)

// TransferResult reports the outcome of an atomic transfer: both post-
// transfer balances plus the receiver's internal id for notification.
type TransferResult struct {
	SenderBalance   int64
	ReceiverID      uuid.UUID
	ReceiverBalance int64
}

// AdjustResult reports the outcome of an atomic banker adjustment.
type AdjustResult struct {
	TargetID   uuid.UUID
	NewBalance int64
}

// SettleFineResult reports the outcome of an atomic fine settlement.
type SettleFineResult struct {
	NewBalance int64
	PaidAt     time.Time
}

// Repository defines the set of methods for interacting with the database.
// Methods grouped under "atomic money movement" execute as single
// all-or-nothing database transactions: partial application of a balance
// change without its ledger entry is never observable.
type Repository interface {
	// Account methods
	FindAccountByCardNumber(ctx context.Context, cardNumber int) (*domain.Account, error)
	FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	CardNumberExists(ctx context.Context, cardNumber int) (bool, error)
	CreateAccount(ctx context.Context, account *domain.Account) error
	SearchAccountsByNickname(ctx context.Context, fragment string, excludeID uuid.UUID, limit int) ([]domain.AccountSummary, error)
	SearchAccountsByCardRange(ctx context.Context, lo, hi int, excludeID uuid.UUID, limit int) ([]domain.AccountSummary, error)
	SetAccountRoles(ctx context.Context, cardNumber int, roles domain.RoleSet) (*domain.Account, error)
	SetAccountFrozen(ctx context.Context, cardNumber int, frozen bool) (*domain.Account, error)

	// Atomic money movement
	TransferFunds(ctx context.Context, senderCard, receiverCard int, amount int64, reason *string) (*TransferResult, error)
	AdjustBalance(ctx context.Context, targetCard int, amount int64, direction domain.TransactionType, reason *string) (*AdjustResult, error)
	SettleFine(ctx context.Context, fineID, payerID uuid.UUID, treasuryCard int) (*SettleFineResult, error)

	// Ledger reads
	FindTransactionsByCardNumber(ctx context.Context, cardNumber int, limit int) ([]domain.Transaction, error)
	FindTransactionsByCardNumberAsc(ctx context.Context, cardNumber int, limit int) ([]domain.Transaction, error)
	ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)

	// Fine methods
	CreateFine(ctx context.Context, fine *domain.Fine) error
	FindFineByID(ctx context.Context, fineID uuid.UUID) (*domain.Fine, error)
	FindUnpaidFinesByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Fine, error)
	CountUnpaidFines(ctx context.Context, userID uuid.UUID) (int, error)
	FindOverdueFinesByInspector(ctx context.Context, inspectorID uuid.UUID, now time.Time) ([]domain.Fine, error)
}
