package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playvault/economy-service/internal/domain"
)

type pagerStub struct {
	calls    int
	notified int
	err      error
	lastRole domain.Role
}

func (p *pagerStub) Page(ctx context.Context, role domain.Role, callerNickname string) (int, error) {
	p.calls++
	p.lastRole = role
	return p.notified, p.err
}

func newStaffCallService(pager Pager, cooldowns CooldownStore) *Service {
	return NewService(nil, NewNotificationRelay(nil), pager, cooldowns, 5*time.Minute, domain.TreasuryCardNumber, 0)
}

func TestCallStaffStartsCooldownAfterDelivery(t *testing.T) {
	pager := &pagerStub{notified: 2}
	cooldowns := NewMemoryCooldownStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cooldowns.now = func() time.Time { return now }
	svc := newStaffCallService(pager, cooldowns)
	caller := playerCaller(11111)

	notified, err := svc.CallStaff(context.Background(), caller, domain.RoleBanker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notified != 2 {
		t.Fatalf("expected 2 notified, got %d", notified)
	}
	if pager.lastRole != domain.RoleBanker {
		t.Fatalf("expected banker page, got %s", pager.lastRole)
	}

	// Second call inside the window is rejected without paging again.
	now = now.Add(time.Minute)
	_, err = svc.CallStaff(context.Background(), caller, domain.RoleBanker)
	var cooldownErr *CooldownActiveError
	if !errors.As(err, &cooldownErr) {
		t.Fatalf("expected CooldownActiveError, got %v", err)
	}
	if got := cooldownErr.RetryAfterSeconds(); got != 240 {
		t.Fatalf("expected 240s retry-after, got %d", got)
	}
	if pager.calls != 1 {
		t.Fatalf("pager must not be called during cooldown, got %d calls", pager.calls)
	}

	// Paging the other role is an independent window.
	_, err = svc.CallStaff(context.Background(), caller, domain.RoleInspector)
	if err != nil {
		t.Fatalf("unexpected error for inspector call: %v", err)
	}

	// After the window lapses the banker call works again.
	now = now.Add(5 * time.Minute)
	if _, err := svc.CallStaff(context.Background(), caller, domain.RoleBanker); err != nil {
		t.Fatalf("unexpected error after window lapsed: %v", err)
	}
}

func TestCallStaffFailedDeliveryKeepsWindowOpen(t *testing.T) {
	pager := &pagerStub{err: errors.New("bot unreachable")}
	cooldowns := NewMemoryCooldownStore()
	svc := newStaffCallService(pager, cooldowns)
	caller := playerCaller(11111)

	if _, err := svc.CallStaff(context.Background(), caller, domain.RoleBanker); err == nil {
		t.Fatal("expected delivery error")
	}

	// The failed attempt must not have consumed the cooldown.
	pager.err = nil
	pager.notified = 1
	if _, err := svc.CallStaff(context.Background(), caller, domain.RoleBanker); err != nil {
		t.Fatalf("retry after failed delivery should pass: %v", err)
	}
}

func TestCallStaffRejectsUnpageableRole(t *testing.T) {
	svc := newStaffCallService(&pagerStub{}, NewMemoryCooldownStore())

	_, err := svc.CallStaff(context.Background(), playerCaller(11111), domain.RoleJudge)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for judge page, got %v", err)
	}
}

func TestCallStaffWithoutPagerConfigured(t *testing.T) {
	svc := newStaffCallService(nil, NewMemoryCooldownStore())

	_, err := svc.CallStaff(context.Background(), playerCaller(11111), domain.RoleBanker)
	if !errors.Is(err, ErrPagerUnavailable) {
		t.Fatalf("expected ErrPagerUnavailable, got %v", err)
	}
}
