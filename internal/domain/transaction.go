/**
 * @description
 * This file defines the transaction ledger model and the request/response
 * DTOs for money movement. A Transaction is the immutable record of one
 * balance-affecting event; it is the sole source of truth for balance
 * history reconstruction.
 *
 * @notes
 * - Sender/receiver are recorded by card number, not foreign key: a pure
 *   deposit has no sender and a pure withdrawal has no receiver, and ledger
 *   rows must outlive any account-side change.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTransfer   TransactionType = "TRANSFER"
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	TransactionFine       TransactionType = "FINE"
)

// OperationBy records which side initiated the movement.
type OperationBy string

const (
	OperationByPlayer OperationBy = "PLAYER"
	OperationByBank   OperationBy = "BANK"
)

// Transaction is one immutable ledger entry. Maps to the `transactions`
// table; rows are append-only and never updated or deleted.
type Transaction struct {
	ID                 uuid.UUID       `json:"id"`
	SenderCardNumber   *int            `json:"sender_card_number"`   // nil for pure deposits
	ReceiverCardNumber *int            `json:"receiver_card_number"` // nil for pure withdrawals
	Amount             int64           `json:"amount"`
	Type               TransactionType `json:"type"`
	OperationBy        OperationBy     `json:"operation_by"`
	FinePaymentForID   *uuid.UUID      `json:"fine_payment_for_id,omitempty"`
	Reason             *string         `json:"reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// TransferRequest is the DTO for POST /transfer.
type TransferRequest struct {
	SenderCardNumber   int    `json:"sender_card_number"`
	ReceiverCardNumber int    `json:"receiver_card_number"`
	Amount             int64  `json:"amount"`
	Reason             string `json:"reason,omitempty"`
}

// BankerAdjustRequest is the DTO for banker deposit/withdraw endpoints.
type BankerAdjustRequest struct {
	TargetCardNumber int   `json:"target_card_number"`
	Amount           int64 `json:"amount"`
}

// BalanceLookupRequest is the DTO for POST /banker/balance.
type BalanceLookupRequest struct {
	TargetCardNumber int `json:"target_card_number"`
}

// BalanceLookupResult is the staff view of one account: a snapshot plus
// the most recent ledger activity and outstanding obligations.
type BalanceLookupResult struct {
	Account            AccountView   `json:"account"`
	RecentTransactions []Transaction `json:"recent_transactions"`
	UnpaidFines        []Fine        `json:"unpaid_fines"`
}

// BalancePoint is one step of the derived balance history read-model.
type BalancePoint struct {
	Date    time.Time `json:"date"`
	Balance int64     `json:"balance"`
}

// BalanceHistory reconstructs balance points by replaying transactions
// against the current balance. The walk runs backwards first to find the
// starting balance, then forward to emit one point per ledger entry.
// Transactions must be ordered by creation time ascending.
func BalanceHistory(cardNumber int, currentBalance int64, transactions []Transaction) []BalancePoint {
	starting := currentBalance
	for i := len(transactions) - 1; i >= 0; i-- {
		tx := transactions[i]
		if tx.ReceiverCardNumber != nil && *tx.ReceiverCardNumber == cardNumber {
			starting -= tx.Amount
		}
		if tx.SenderCardNumber != nil && *tx.SenderCardNumber == cardNumber {
			starting += tx.Amount
		}
	}

	firstAt := time.Now()
	if len(transactions) > 0 {
		firstAt = transactions[0].CreatedAt.Add(-time.Second)
	}
	history := []BalancePoint{{Date: firstAt, Balance: starting}}

	running := starting
	for _, tx := range transactions {
		if tx.ReceiverCardNumber != nil && *tx.ReceiverCardNumber == cardNumber {
			running += tx.Amount
		}
		if tx.SenderCardNumber != nil && *tx.SenderCardNumber == cardNumber {
			running -= tx.Amount
		}
		history = append(history, BalancePoint{Date: tx.CreatedAt, Balance: running})
	}
	return history
}
