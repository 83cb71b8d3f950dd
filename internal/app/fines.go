/**
 * @description
 * This file contains the fine lifecycle business logic: issuing fines
 * against player accounts, settling them exactly once against the treasury,
 * and the inspector-facing fine listings. Settlement runs through the
 * store's atomic unit so that a fine can never be paid twice and a payer's
 * balance is never debited without the fine flipping to paid.
 *
 * @dependencies
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/playvault/economy-service/internal/domain"
	"github.com/playvault/economy-service/internal/store"
)

var (
	ErrSelfFine       = errors.New("cannot issue a fine against yourself")
	ErrInvalidDueDays = errors.New("days until due must be a positive integer")
	ErrNotFineDebtor  = errors.New("fine does not belong to the caller")
)

// PayFineResult is returned after a successful fine settlement.
type PayFineResult struct {
	NewBalance       int64 `json:"newBalance"`
	UnpaidFinesCount int   `json:"unpaidFinesCount"`
}

// IssueFine creates a new unpaid fine against the target account. Requires
// the inspector or admin role. The due date lands at the last instant of the
// calendar day the due window ends on, in the service's local zone.
func (s *Service) IssueFine(ctx context.Context, caller domain.CallerIdentity, req domain.IssueFineRequest) (*domain.Fine, error) {
	if err := caller.RequireAny(domain.RoleInspector, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.DaysUntilDue <= 0 {
		return nil, ErrInvalidDueDays
	}
	if req.TargetCardNumber == caller.CardNumber {
		return nil, ErrSelfFine
	}

	target, err := s.repo.FindAccountByCardNumber(ctx, req.TargetCardNumber)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}
	fine := &domain.Fine{
		ID:                  uuid.New(),
		UserID:              target.ID,
		IssuedByInspectorID: caller.ID,
		Amount:              req.Amount,
		Reason:              reason,
		DueDate:             domain.FineDueDate(now, req.DaysUntilDue),
		CreatedAt:           now,
	}
	if err := s.repo.CreateFine(ctx, fine); err != nil {
		return nil, err
	}

	count, err := s.repo.CountUnpaidFines(ctx, target.ID)
	if err == nil {
		s.relay.FinesUpdated(ctx, target.ID, count)
	}
	s.relay.Notify(ctx, target.ID, "error",
		fmt.Sprintf("Inspector %s issued you a fine of %d ab", caller.Nickname, fine.Amount))

	return fine, nil
}

// PayFine settles a fine the caller owes. The debit and the paid flag flip
// in one atomic unit; a second payment attempt, however interleaved, is
// rejected rather than double-charged. Funds route to the treasury card.
func (s *Service) PayFine(ctx context.Context, caller domain.CallerIdentity, fineID uuid.UUID) (*PayFineResult, error) {
	if err := caller.RequireNotFrozen(); err != nil {
		return nil, err
	}

	fine, err := s.repo.FindFineByID(ctx, fineID)
	if err != nil {
		return nil, err
	}
	if fine.UserID != caller.ID {
		return nil, ErrNotFineDebtor
	}
	if fine.IsPaid {
		return nil, store.ErrFineAlreadyPaid
	}

	result, err := s.repo.SettleFine(ctx, fineID, caller.ID, s.treasuryCard)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountUnpaidFines(ctx, caller.ID)
	if err != nil {
		count = 0
	}

	s.relay.BalanceUpdated(ctx, caller.ID, result.NewBalance)
	s.relay.FinesUpdated(ctx, caller.ID, count)
	s.relay.Notify(ctx, caller.ID, "success",
		fmt.Sprintf("Fine of %d ab paid", fine.Amount))

	return &PayFineResult{NewBalance: result.NewBalance, UnpaidFinesCount: count}, nil
}

// ListOwnUnpaidFines returns the caller's unpaid fines ordered by due date.
func (s *Service) ListOwnUnpaidFines(ctx context.Context, caller domain.CallerIdentity) ([]domain.Fine, error) {
	return s.repo.FindUnpaidFinesByUserID(ctx, caller.ID)
}

// ListOverdueFines returns the unpaid fines issued by the calling inspector
// whose due date has passed. Requires the inspector or admin role.
func (s *Service) ListOverdueFines(ctx context.Context, caller domain.CallerIdentity) ([]domain.Fine, error) {
	if err := caller.RequireAny(domain.RoleInspector, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.FindOverdueFinesByInspector(ctx, caller.ID, s.now())
}
