/**
 * @description
 * This file contains the core business logic for the economy-service. The
 * `Service` struct orchestrates money movement: player transfers, banker
 * deposits and withdrawals, staff balance lookups, and account provisioning.
 * All validation and business-rule failures surface before or during the
 * atomic store operation; the balance of a paying party is never decremented
 * unless the whole unit (balance change + ledger append) commits.
 *
 * @dependencies
 * - context, errors, fmt, log, math/rand, time: Standard Go libraries.
 * - github.com/google/uuid: For identifier generation.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/playvault/economy-service/internal/domain"
	"github.com/playvault/economy-service/internal/store"
)

var (
	ErrInvalidAmount    = errors.New("amount must be a positive integer")
	ErrSelfTransfer     = errors.New("cannot transfer funds to your own card")
	ErrSenderNotFound   = errors.New("sender account not found")
	ErrReceiverNotFound = errors.New("receiver account not found")
	ErrReceiverFrozen   = errors.New("receiver account is frozen")
	ErrTargetFrozen     = errors.New("target account is frozen")
	ErrRoleAlreadyHeld  = errors.New("target already holds that role")
	ErrRoleNotHeld      = errors.New("target does not hold that role")
)

const (
	recentTransactionLimit = 5
	ownTransactionLimit    = 20
	globalTransactionLimit = 50
	balanceHistoryLimit    = 50
	accountSearchLimit     = 5
	cardNumberPrefixLength = 5
)

// Service provides the core business logic for the economy.
type Service struct {
	repo            store.Repository
	relay           *NotificationRelay
	pager           Pager
	cooldowns       CooldownStore
	cooldown        time.Duration
	treasuryCard    int
	startingBalance int64

	// Injectable for tests.
	now     func() time.Time
	randInt func(n int) int
}

// NewService creates a new economy service instance. pager may be nil when
// the paging bot is not configured; staff calls then fail cleanly.
func NewService(repo store.Repository, relay *NotificationRelay, pager Pager, cooldowns CooldownStore, cooldown time.Duration, treasuryCard int, startingBalance int64) *Service {
	return &Service{
		repo:            repo,
		relay:           relay,
		pager:           pager,
		cooldowns:       cooldowns,
		cooldown:        cooldown,
		treasuryCard:    treasuryCard,
		startingBalance: startingBalance,
		now:             time.Now,
		randInt:         rand.Intn,
	}
}

// Transfer moves funds between two player cards. The caller must own the
// sender card; roles never substitute for ownership. Returns the sender's
// post-transfer balance.
func (s *Service) Transfer(ctx context.Context, caller domain.CallerIdentity, req domain.TransferRequest) (int64, error) {
	if req.Amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if req.SenderCardNumber == req.ReceiverCardNumber {
		return 0, ErrSelfTransfer
	}
	if err := caller.RequireOwnership(req.SenderCardNumber); err != nil {
		return 0, err
	}
	if err := caller.RequireNotFrozen(); err != nil {
		return 0, err
	}

	if _, err := s.repo.FindAccountByCardNumber(ctx, req.SenderCardNumber); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return 0, ErrSenderNotFound
		}
		return 0, fmt.Errorf("failed to find sender: %w", err)
	}
	receiver, err := s.repo.FindAccountByCardNumber(ctx, req.ReceiverCardNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return 0, ErrReceiverNotFound
		}
		return 0, fmt.Errorf("failed to find receiver: %w", err)
	}
	if receiver.IsFrozen {
		return 0, ErrReceiverFrozen
	}

	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}
	result, err := s.repo.TransferFunds(ctx, req.SenderCardNumber, req.ReceiverCardNumber, req.Amount, reason)
	if err != nil {
		// Re-checked under lock; a frozen receiver or short balance can
		// still surface here if state changed since the reads above.
		switch {
		case errors.Is(err, store.ErrAccountFrozen):
			return 0, ErrReceiverFrozen
		case errors.Is(err, store.ErrInsufficientFunds):
			return 0, store.ErrInsufficientFunds
		}
		return 0, fmt.Errorf("transfer failed: %w", err)
	}

	s.relay.BalanceUpdated(ctx, result.ReceiverID, result.ReceiverBalance)
	s.relay.Notify(ctx, result.ReceiverID, "success",
		fmt.Sprintf("You received a transfer of %d ab from %s", req.Amount, caller.Nickname))

	return result.SenderBalance, nil
}

// AdjustDirection selects between the two banker adjustment operations.
type AdjustDirection string

const (
	AdjustDeposit    AdjustDirection = "DEPOSIT"
	AdjustWithdrawal AdjustDirection = "WITHDRAWAL"
)

// BankerAdjust applies a staff-initiated deposit or withdrawal to the target
// card. Requires the banker or admin role. Returns the target's new balance.
func (s *Service) BankerAdjust(ctx context.Context, caller domain.CallerIdentity, targetCard int, amount int64, direction AdjustDirection) (int64, error) {
	if err := caller.RequireAny(domain.RoleBanker, domain.RoleAdmin); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	target, err := s.repo.FindAccountByCardNumber(ctx, targetCard)
	if err != nil {
		return 0, err
	}
	if target.IsFrozen {
		return 0, ErrTargetFrozen
	}

	txType := domain.TransactionDeposit
	reason := fmt.Sprintf("Banker deposit by %s", caller.Nickname)
	if direction == AdjustWithdrawal {
		txType = domain.TransactionWithdrawal
		reason = fmt.Sprintf("Banker withdrawal by %s", caller.Nickname)
		if target.Balance < amount {
			return 0, store.ErrInsufficientFunds
		}
	}

	result, err := s.repo.AdjustBalance(ctx, targetCard, amount, txType, &reason)
	if err != nil {
		if errors.Is(err, store.ErrAccountFrozen) {
			return 0, ErrTargetFrozen
		}
		return 0, err
	}

	s.relay.BalanceUpdated(ctx, result.TargetID, result.NewBalance)
	if direction == AdjustWithdrawal {
		s.relay.Notify(ctx, result.TargetID, "error",
			fmt.Sprintf("%d ab was withdrawn from your account by banker %s", amount, caller.Nickname))
	} else {
		s.relay.Notify(ctx, result.TargetID, "success",
			fmt.Sprintf("Your account was credited %d ab by banker %s", amount, caller.Nickname))
	}

	return result.NewBalance, nil
}

// BalanceLookup returns a staff snapshot of an account: its state, the last
// five ledger entries touching its card, and its unpaid fines. Read-only;
// requires the banker or admin role.
func (s *Service) BalanceLookup(ctx context.Context, caller domain.CallerIdentity, targetCard int) (*domain.BalanceLookupResult, error) {
	if err := caller.RequireAny(domain.RoleBanker, domain.RoleAdmin); err != nil {
		return nil, err
	}

	target, err := s.repo.FindAccountByCardNumber(ctx, targetCard)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.FindTransactionsByCardNumber(ctx, targetCard, recentTransactionLimit)
	if err != nil {
		return nil, err
	}
	unpaid, err := s.repo.FindUnpaidFinesByUserID(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	return &domain.BalanceLookupResult{
		Account:            target.View(),
		RecentTransactions: recent,
		UnpaidFines:        unpaid,
	}, nil
}

// GenerateUniqueCardNumber draws uniformly from the card number space,
// excluding the treasury value, until it finds a number no account holds.
// The result is unused at the instant of generation but not reserved; a
// create racing another create resolves at the unique constraint.
func (s *Service) GenerateUniqueCardNumber(ctx context.Context) (int, error) {
	for {
		card := domain.CardNumberMin + s.randInt(domain.CardNumberMax-domain.CardNumberMin+1)
		if card == domain.TreasuryCardNumber {
			continue
		}
		exists, err := s.repo.CardNumberExists(ctx, card)
		if err != nil {
			return 0, err
		}
		if !exists {
			return card, nil
		}
	}
}

// CreateAccount provisions a new account with a freshly generated card
// number and the configured starting grant.
func (s *Service) CreateAccount(ctx context.Context, nickname string) (*domain.Account, error) {
	card, err := s.GenerateUniqueCardNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate card number: %w", err)
	}

	account := &domain.Account{
		ID:         uuid.New(),
		CardNumber: card,
		Nickname:   nickname,
		Balance:    s.startingBalance,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	log.Printf("level=info component=app msg=\"account created\" nickname=%s card_number=%d", nickname, card)
	return account, nil
}

// SearchAccounts finds up to five accounts by nickname fragment or numeric
// card-number prefix, excluding the caller. A card prefix is rewritten as an
// arithmetic range over the 5-digit space (e.g. "123" matches [12300,12400)).
// Queries shorter than two characters yield no results rather than an error.
func (s *Service) SearchAccounts(ctx context.Context, caller domain.CallerIdentity, nickname, cardPrefix string) ([]domain.AccountSummary, error) {
	if nickname != "" {
		if len(nickname) < 2 {
			return nil, nil
		}
		return s.repo.SearchAccountsByNickname(ctx, nickname, caller.ID, accountSearchLimit)
	}

	if len(cardPrefix) < 2 || len(cardPrefix) > cardNumberPrefixLength {
		return nil, nil
	}
	prefix, err := strconv.Atoi(cardPrefix)
	if err != nil || prefix < 0 {
		return nil, nil
	}
	power := 1
	for i := 0; i < cardNumberPrefixLength-len(cardPrefix); i++ {
		power *= 10
	}
	lo := prefix * power
	hi := lo + power
	return s.repo.SearchAccountsByCardRange(ctx, lo, hi, caller.ID, accountSearchLimit)
}

// ListOwnTransactions returns the caller's most recent ledger entries.
func (s *Service) ListOwnTransactions(ctx context.Context, caller domain.CallerIdentity) ([]domain.Transaction, error) {
	return s.repo.FindTransactionsByCardNumber(ctx, caller.CardNumber, ownTransactionLimit)
}

// ListAllTransactions returns the most recent ledger entries across all
// accounts. Requires the banker or admin role.
func (s *Service) ListAllTransactions(ctx context.Context, caller domain.CallerIdentity) ([]domain.Transaction, error) {
	if err := caller.RequireAny(domain.RoleBanker, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, globalTransactionLimit)
}

// BalanceHistory reconstructs the caller's balance over their recent ledger
// activity by replaying entries against the current balance. Derived on
// read, never stored.
func (s *Service) BalanceHistory(ctx context.Context, caller domain.CallerIdentity) ([]domain.BalancePoint, error) {
	account, err := s.repo.FindAccountByID(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.repo.FindTransactionsByCardNumberAsc(ctx, account.CardNumber, balanceHistoryLimit)
	if err != nil {
		return nil, err
	}
	return domain.BalanceHistory(account.CardNumber, account.Balance, transactions), nil
}

// GrantRole adds a role to the target account. Admin only; granting a role
// the target already holds is rejected.
func (s *Service) GrantRole(ctx context.Context, caller domain.CallerIdentity, targetCard int, role domain.Role) (*domain.Account, error) {
	if err := caller.RequireAny(domain.RoleAdmin); err != nil {
		return nil, err
	}
	target, err := s.repo.FindAccountByCardNumber(ctx, targetCard)
	if err != nil {
		return nil, err
	}
	if target.Roles.Has(role) {
		return nil, ErrRoleAlreadyHeld
	}
	updated, err := s.repo.SetAccountRoles(ctx, targetCard, target.Roles.With(role))
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=app msg=\"role granted\" role=%s target_card=%d by=%s", role, targetCard, caller.Nickname)
	return updated, nil
}

// RevokeRole removes a role from the target account. Admin only; revoking a
// role the target does not hold is rejected.
func (s *Service) RevokeRole(ctx context.Context, caller domain.CallerIdentity, targetCard int, role domain.Role) (*domain.Account, error) {
	if err := caller.RequireAny(domain.RoleAdmin); err != nil {
		return nil, err
	}
	target, err := s.repo.FindAccountByCardNumber(ctx, targetCard)
	if err != nil {
		return nil, err
	}
	if !target.Roles.Has(role) {
		return nil, ErrRoleNotHeld
	}
	updated, err := s.repo.SetAccountRoles(ctx, targetCard, target.Roles.Without(role))
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=app msg=\"role revoked\" role=%s target_card=%d by=%s", role, targetCard, caller.Nickname)
	return updated, nil
}

// ToggleFreeze flips the frozen state of the target account. Admin only.
// Administrator accounts can never be frozen.
func (s *Service) ToggleFreeze(ctx context.Context, caller domain.CallerIdentity, targetCard int) (*domain.Account, error) {
	if err := caller.RequireAny(domain.RoleAdmin); err != nil {
		return nil, err
	}
	target, err := s.repo.FindAccountByCardNumber(ctx, targetCard)
	if err != nil {
		return nil, err
	}
	if target.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	updated, err := s.repo.SetAccountFrozen(ctx, targetCard, !target.IsFrozen)
	if err != nil {
		return nil, err
	}

	state := "unfrozen"
	kind := "success"
	if updated.IsFrozen {
		state = "frozen"
		kind = "error"
	}
	s.relay.Notify(ctx, updated.ID, kind,
		fmt.Sprintf("Your account has been %s by staff member %s", state, caller.Nickname))
	s.relay.FrozenStatusChanged(ctx, updated.ID, updated.IsFrozen)

	return updated, nil
}
