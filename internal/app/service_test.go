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
	"github.com/playvault/economy-service/pkg/rabbitmq"
)

// recordingPublisher captures published events so tests can assert on the
// relay without a broker.
type recordingPublisher struct {
	mu          sync.Mutex
	routingKeys []string
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() {}

type transferRepoStub struct {
	store.Repository

	accountsByCard map[int]*domain.Account

	transferResult *store.TransferResult
	transferErr    error
	transferCalls  int

	adjustResult *store.AdjustResult
	adjustErr    error
	adjustCalls  int
}

func (s *transferRepoStub) FindAccountByCardNumber(ctx context.Context, cardNumber int) (*domain.Account, error) {
	if account, ok := s.accountsByCard[cardNumber]; ok {
		return account, nil
	}
	return nil, store.ErrAccountNotFound
}

func (s *transferRepoStub) TransferFunds(ctx context.Context, senderCard, receiverCard int, amount int64, reason *string) (*store.TransferResult, error) {
	s.transferCalls++
	if s.transferErr != nil {
		return nil, s.transferErr
	}
	return s.transferResult, nil
}

func (s *transferRepoStub) AdjustBalance(ctx context.Context, targetCard int, amount int64, direction domain.TransactionType, reason *string) (*store.AdjustResult, error) {
	s.adjustCalls++
	if s.adjustErr != nil {
		return nil, s.adjustErr
	}
	return s.adjustResult, nil
}

func newTestService(repo store.Repository) (*Service, *recordingPublisher) {
	publisher := &recordingPublisher{}
	svc := NewService(repo, NewNotificationRelay(publisher), nil, NewMemoryCooldownStore(), 5*time.Minute, domain.TreasuryCardNumber, 0)
	return svc, publisher
}

func playerCaller(card int) domain.CallerIdentity {
	return domain.CallerIdentity{
		ID:         uuid.New(),
		CardNumber: card,
		Nickname:   "alex",
	}
}

func TestTransferPreconditionOrder(t *testing.T) {
	sender := &domain.Account{ID: uuid.New(), CardNumber: 11111, Balance: 100}
	frozen := &domain.Account{ID: uuid.New(), CardNumber: 33333, IsFrozen: true}
	receiver := &domain.Account{ID: uuid.New(), CardNumber: 22222}

	tests := []struct {
		name    string
		caller  domain.CallerIdentity
		req     domain.TransferRequest
		wantErr error
	}{
		{
			name:    "non-positive amount rejected first",
			caller:  playerCaller(11111),
			req:     domain.TransferRequest{SenderCardNumber: 11111, ReceiverCardNumber: 99998, Amount: 0},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "self transfer rejected even with bad amount target",
			caller:  playerCaller(11111),
			req:     domain.TransferRequest{SenderCardNumber: 11111, ReceiverCardNumber: 11111, Amount: 10},
			wantErr: ErrSelfTransfer,
		},
		{
			name:    "ownership beats existence",
			caller:  playerCaller(11111),
			req:     domain.TransferRequest{SenderCardNumber: 55555, ReceiverCardNumber: 22222, Amount: 10},
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "missing receiver",
			caller:  playerCaller(11111),
			req:     domain.TransferRequest{SenderCardNumber: 11111, ReceiverCardNumber: 99998, Amount: 10},
			wantErr: ErrReceiverNotFound,
		},
		{
			name:    "frozen receiver",
			caller:  playerCaller(11111),
			req:     domain.TransferRequest{SenderCardNumber: 11111, ReceiverCardNumber: 33333, Amount: 10},
			wantErr: ErrReceiverFrozen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &transferRepoStub{accountsByCard: map[int]*domain.Account{
				11111: sender,
				22222: receiver,
				33333: frozen,
			}}
			svc, _ := newTestService(repo)

			_, err := svc.Transfer(context.Background(), tt.caller, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if repo.transferCalls != 0 {
				t.Fatal("store transfer must not run when a precondition fails")
			}
		})
	}
}

func TestTransferSuccessPublishesReceiverEvents(t *testing.T) {
	sender := &domain.Account{ID: uuid.New(), CardNumber: 11111, Balance: 100}
	receiver := &domain.Account{ID: uuid.New(), CardNumber: 22222, Balance: 5}
	repo := &transferRepoStub{
		accountsByCard: map[int]*domain.Account{11111: sender, 22222: receiver},
		transferResult: &store.TransferResult{
			SenderBalance:   60,
			ReceiverID:      receiver.ID,
			ReceiverBalance: 45,
		},
	}
	svc, publisher := newTestService(repo)
	caller := playerCaller(11111)

	newBalance, err := svc.Transfer(context.Background(), caller, domain.TransferRequest{
		SenderCardNumber:   11111,
		ReceiverCardNumber: 22222,
		Amount:             40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newBalance != 60 {
		t.Fatalf("expected sender balance 60, got %d", newBalance)
	}
	if len(publisher.routingKeys) != 2 {
		t.Fatalf("expected balance and notification events, got %v", publisher.routingKeys)
	}
}

func TestTransferInsufficientFundsFromStore(t *testing.T) {
	sender := &domain.Account{ID: uuid.New(), CardNumber: 11111, Balance: 5}
	receiver := &domain.Account{ID: uuid.New(), CardNumber: 22222}
	repo := &transferRepoStub{
		accountsByCard: map[int]*domain.Account{11111: sender, 22222: receiver},
		transferErr:    store.ErrInsufficientFunds,
	}
	svc, publisher := newTestService(repo)

	_, err := svc.Transfer(context.Background(), playerCaller(11111), domain.TransferRequest{
		SenderCardNumber:   11111,
		ReceiverCardNumber: 22222,
		Amount:             40,
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(publisher.routingKeys) != 0 {
		t.Fatal("no events should be published for a failed transfer")
	}
}

func TestTransferFrozenCallerRejected(t *testing.T) {
	repo := &transferRepoStub{accountsByCard: map[int]*domain.Account{}}
	svc, _ := newTestService(repo)

	caller := playerCaller(11111)
	caller.IsFrozen = true

	_, err := svc.Transfer(context.Background(), caller, domain.TransferRequest{
		SenderCardNumber:   11111,
		ReceiverCardNumber: 22222,
		Amount:             10,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for frozen sender, got %v", err)
	}
}

func TestBankerAdjustRequiresRole(t *testing.T) {
	repo := &transferRepoStub{accountsByCard: map[int]*domain.Account{}}
	svc, _ := newTestService(repo)

	_, err := svc.BankerAdjust(context.Background(), playerCaller(11111), 22222, 10, AdjustDeposit)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for plain player, got %v", err)
	}
	if repo.adjustCalls != 0 {
		t.Fatal("adjustment must not run without the banker role")
	}
}

func TestBankerWithdrawChecksBalance(t *testing.T) {
	target := &domain.Account{ID: uuid.New(), CardNumber: 22222, Balance: 30}
	repo := &transferRepoStub{accountsByCard: map[int]*domain.Account{22222: target}}
	svc, _ := newTestService(repo)

	caller := playerCaller(11111)
	caller.Roles = caller.Roles.With(domain.RoleBanker)

	_, err := svc.BankerAdjust(context.Background(), caller, 22222, 50, AdjustWithdrawal)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if repo.adjustCalls != 0 {
		t.Fatal("over-withdrawal must fail before reaching the store")
	}
}

func TestBankerDepositSucceedsAndNotifies(t *testing.T) {
	target := &domain.Account{ID: uuid.New(), CardNumber: 22222, Balance: 30}
	repo := &transferRepoStub{
		accountsByCard: map[int]*domain.Account{22222: target},
		adjustResult:   &store.AdjustResult{TargetID: target.ID, NewBalance: 80},
	}
	svc, publisher := newTestService(repo)

	caller := playerCaller(11111)
	caller.Roles = caller.Roles.With(domain.RoleBanker)

	newBalance, err := svc.BankerAdjust(context.Background(), caller, 22222, 50, AdjustDeposit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newBalance != 80 {
		t.Fatalf("expected balance 80, got %d", newBalance)
	}
	if len(publisher.routingKeys) != 2 {
		t.Fatalf("expected balance and notification events, got %v", publisher.routingKeys)
	}
}

type searchRepoStub struct {
	store.Repository

	nicknameQuery string
	rangeLo       int
	rangeHi       int
	rangeCalled   bool
}

func (s *searchRepoStub) SearchAccountsByNickname(ctx context.Context, fragment string, excludeID uuid.UUID, limit int) ([]domain.AccountSummary, error) {
	s.nicknameQuery = fragment
	return []domain.AccountSummary{}, nil
}

func (s *searchRepoStub) SearchAccountsByCardRange(ctx context.Context, lo, hi int, excludeID uuid.UUID, limit int) ([]domain.AccountSummary, error) {
	s.rangeCalled = true
	s.rangeLo = lo
	s.rangeHi = hi
	return []domain.AccountSummary{}, nil
}

func TestSearchAccountsCardPrefixRange(t *testing.T) {
	tests := []struct {
		prefix     string
		wantLo     int
		wantHi     int
		wantCalled bool
	}{
		{prefix: "123", wantLo: 12300, wantHi: 12400, wantCalled: true},
		{prefix: "98", wantLo: 98000, wantHi: 99000, wantCalled: true},
		{prefix: "12345", wantLo: 12345, wantHi: 12346, wantCalled: true},
		{prefix: "9", wantCalled: false},
		{prefix: "123456", wantCalled: false},
		{prefix: "12a", wantCalled: false},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			repo := &searchRepoStub{}
			svc, _ := newTestService(repo)

			_, err := svc.SearchAccounts(context.Background(), playerCaller(11111), "", tt.prefix)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.rangeCalled != tt.wantCalled {
				t.Fatalf("range search called=%t, want %t", repo.rangeCalled, tt.wantCalled)
			}
			if tt.wantCalled && (repo.rangeLo != tt.wantLo || repo.rangeHi != tt.wantHi) {
				t.Fatalf("expected range [%d,%d), got [%d,%d)", tt.wantLo, tt.wantHi, repo.rangeLo, repo.rangeHi)
			}
		})
	}
}

func TestSearchAccountsShortNicknameYieldsNothing(t *testing.T) {
	repo := &searchRepoStub{}
	svc, _ := newTestService(repo)

	results, err := svc.SearchAccounts(context.Background(), playerCaller(11111), "a", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results for one-character query, got %v", results)
	}
	if repo.nicknameQuery != "" {
		t.Fatal("store must not be queried for a too-short fragment")
	}
}

type cardGenRepoStub struct {
	store.Repository

	taken   map[int]bool
	queried []int
}

func (s *cardGenRepoStub) CardNumberExists(ctx context.Context, cardNumber int) (bool, error) {
	s.queried = append(s.queried, cardNumber)
	return s.taken[cardNumber], nil
}

func TestGenerateUniqueCardNumberSkipsTreasuryAndCollisions(t *testing.T) {
	repo := &cardGenRepoStub{taken: map[int]bool{10001: true}}
	svc, _ := newTestService(repo)

	// Draws: treasury (10000), a taken number, then a free one.
	draws := []int{0, 1, 2}
	svc.randInt = func(n int) int {
		draw := draws[0]
		draws = draws[1:]
		return draw
	}

	card, err := svc.GenerateUniqueCardNumber(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card != 10002 {
		t.Fatalf("expected 10002, got %d", card)
	}
	// The treasury draw must be skipped without touching the store.
	if len(repo.queried) != 2 {
		t.Fatalf("expected 2 existence checks, got %d", len(repo.queried))
	}
}

var _ rabbitmq.Publisher = (*recordingPublisher)(nil)
