package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/playvault/economy-service/internal/domain"
	"github.com/playvault/economy-service/internal/store"
)

type fineRepoStub struct {
	store.Repository

	accountsByCard map[int]*domain.Account
	fine           *domain.Fine

	createdFine *domain.Fine
	unpaidCount int

	mu          sync.Mutex
	settled     bool
	settleCalls int
}

func (s *fineRepoStub) FindAccountByCardNumber(ctx context.Context, cardNumber int) (*domain.Account, error) {
	if account, ok := s.accountsByCard[cardNumber]; ok {
		return account, nil
	}
	return nil, store.ErrAccountNotFound
}

func (s *fineRepoStub) CreateFine(ctx context.Context, fine *domain.Fine) error {
	s.createdFine = fine
	return nil
}

func (s *fineRepoStub) FindFineByID(ctx context.Context, fineID uuid.UUID) (*domain.Fine, error) {
	if s.fine == nil || s.fine.ID != fineID {
		return nil, store.ErrFineNotFound
	}
	clone := *s.fine
	return &clone, nil
}

func (s *fineRepoStub) CountUnpaidFines(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.unpaidCount, nil
}

// SettleFine mirrors the conditional update of the real store: the first
// caller wins, every later caller observes ErrFineAlreadyPaid.
func (s *fineRepoStub) SettleFine(ctx context.Context, fineID, payerID uuid.UUID, treasuryCard int) (*store.SettleFineResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settleCalls++
	if s.settled {
		return nil, store.ErrFineAlreadyPaid
	}
	s.settled = true
	return &store.SettleFineResult{NewBalance: 10, PaidAt: time.Now()}, nil
}

func inspectorCaller(card int) domain.CallerIdentity {
	return domain.CallerIdentity{
		ID:         uuid.New(),
		CardNumber: card,
		Nickname:   "rema",
		Roles:      domain.RoleSet(0).With(domain.RoleInspector),
	}
}

func TestIssueFineValidation(t *testing.T) {
	target := &domain.Account{ID: uuid.New(), CardNumber: 22222}

	tests := []struct {
		name    string
		caller  domain.CallerIdentity
		req     domain.IssueFineRequest
		wantErr error
	}{
		{
			name:    "plain player cannot issue",
			caller:  playerCaller(11111),
			req:     domain.IssueFineRequest{TargetCardNumber: 22222, Amount: 10, DaysUntilDue: 3},
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "zero amount",
			caller:  inspectorCaller(11111),
			req:     domain.IssueFineRequest{TargetCardNumber: 22222, Amount: 0, DaysUntilDue: 3},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "zero due days",
			caller:  inspectorCaller(11111),
			req:     domain.IssueFineRequest{TargetCardNumber: 22222, Amount: 10, DaysUntilDue: 0},
			wantErr: ErrInvalidDueDays,
		},
		{
			name:    "self fine",
			caller:  inspectorCaller(11111),
			req:     domain.IssueFineRequest{TargetCardNumber: 11111, Amount: 10, DaysUntilDue: 3},
			wantErr: ErrSelfFine,
		},
		{
			name:    "missing target",
			caller:  inspectorCaller(11111),
			req:     domain.IssueFineRequest{TargetCardNumber: 99998, Amount: 10, DaysUntilDue: 3},
			wantErr: store.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fineRepoStub{accountsByCard: map[int]*domain.Account{22222: target}}
			svc, _ := newTestService(repo)

			_, err := svc.IssueFine(context.Background(), tt.caller, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if repo.createdFine != nil {
				t.Fatal("no fine must be created when validation fails")
			}
		})
	}
}

func TestIssueFineSetsEndOfDayDueDate(t *testing.T) {
	target := &domain.Account{ID: uuid.New(), CardNumber: 22222}
	repo := &fineRepoStub{accountsByCard: map[int]*domain.Account{22222: target}}
	svc, _ := newTestService(repo)

	issuedAt := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	fine, err := svc.IssueFine(context.Background(), inspectorCaller(11111), domain.IssueFineRequest{
		TargetCardNumber: 22222,
		Amount:           25,
		Reason:           "speeding",
		DaysUntilDue:     3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDue := time.Date(2026, 3, 13, 23, 59, 59, 999_000_000, time.UTC)
	if !fine.DueDate.Equal(wantDue) {
		t.Fatalf("expected due date %v, got %v", wantDue, fine.DueDate)
	}
	if fine.UserID != target.ID {
		t.Fatal("fine must be attached to the target account")
	}
	if fine.IsPaid {
		t.Fatal("a fresh fine must be unpaid")
	}
}

func TestPayFineRejectsForeignFine(t *testing.T) {
	fine := &domain.Fine{ID: uuid.New(), UserID: uuid.New(), Amount: 25}
	repo := &fineRepoStub{fine: fine}
	svc, _ := newTestService(repo)

	_, err := svc.PayFine(context.Background(), playerCaller(11111), fine.ID)
	if !errors.Is(err, ErrNotFineDebtor) {
		t.Fatalf("expected ErrNotFineDebtor, got %v", err)
	}
	if repo.settleCalls != 0 {
		t.Fatal("settlement must not run for a foreign fine")
	}
}

func TestPayFineExactlyOnceUnderConcurrency(t *testing.T) {
	caller := playerCaller(11111)
	fine := &domain.Fine{ID: uuid.New(), UserID: caller.ID, Amount: 25}
	repo := &fineRepoStub{fine: fine}
	svc, _ := newTestService(repo)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PayFine(context.Background(), caller, fine.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrFineAlreadyPaid):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful payment, got %d", succeeded)
	}
}

func TestPayFineAlreadyPaidShortCircuits(t *testing.T) {
	caller := playerCaller(11111)
	paidAt := time.Now()
	fine := &domain.Fine{ID: uuid.New(), UserID: caller.ID, Amount: 25, IsPaid: true, PaidAt: &paidAt}
	repo := &fineRepoStub{fine: fine}
	svc, _ := newTestService(repo)

	_, err := svc.PayFine(context.Background(), caller, fine.ID)
	if !errors.Is(err, store.ErrFineAlreadyPaid) {
		t.Fatalf("expected ErrFineAlreadyPaid, got %v", err)
	}
	if repo.settleCalls != 0 {
		t.Fatal("an already paid fine must not reach settlement")
	}
}

func TestPayFineSuccessReportsBalanceAndCount(t *testing.T) {
	caller := playerCaller(11111)
	fine := &domain.Fine{ID: uuid.New(), UserID: caller.ID, Amount: 25}
	repo := &fineRepoStub{fine: fine, unpaidCount: 2}
	svc, publisher := newTestService(repo)

	result, err := svc.PayFine(context.Background(), caller, fine.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NewBalance != 10 {
		t.Fatalf("expected new balance 10, got %d", result.NewBalance)
	}
	if result.UnpaidFinesCount != 2 {
		t.Fatalf("expected 2 unpaid fines remaining, got %d", result.UnpaidFinesCount)
	}
	if len(publisher.routingKeys) != 3 {
		t.Fatalf("expected balance, fines, and notification events, got %v", publisher.routingKeys)
	}
}
