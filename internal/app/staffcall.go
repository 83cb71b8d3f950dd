/**
 * @description
 * This file implements staff paging. A player can summon a banker or an
 * inspector; the request is relayed synchronously to the external paging
 * bot, and each (role, caller) pair is rate limited by the cooldown store.
 *
 * @dependencies
 * - internal/domain: For role names and caller identity.
 * - pkg/pagerclient: The HTTP client for the paging bot.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/playvault/economy-service/internal/domain"
	"github.com/playvault/economy-service/pkg/pagerclient"
)

// Pager delivers a synchronous staff page and reports how many staff
// members of the requested role were reached.
type Pager interface {
	Page(ctx context.Context, role domain.Role, callerNickname string) (notified int, err error)
}

// ErrPagerUnavailable is returned when no paging backend is configured.
var ErrPagerUnavailable = errors.New("staff paging is not configured")

// BotPager adapts the paging bot HTTP client to the Pager interface.
type BotPager struct {
	Client *pagerclient.Client
}

func (b *BotPager) Page(ctx context.Context, role domain.Role, callerNickname string) (int, error) {
	var (
		resp *pagerclient.CallResponse
		err  error
	)
	switch role {
	case domain.RoleBanker:
		resp, err = b.Client.CallBanker(ctx, callerNickname)
	case domain.RoleInspector:
		resp, err = b.Client.CallInspector(ctx, callerNickname)
	default:
		return 0, fmt.Errorf("role %s cannot be paged", role)
	}
	if err != nil {
		return 0, err
	}
	return resp.NotifiedCount, nil
}

// CooldownActiveError reports that the caller paged this role too recently.
type CooldownActiveError struct {
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("please wait %d seconds before calling again", e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds the remaining window up to whole seconds, never
// reporting zero for an active window.
func (e *CooldownActiveError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.Remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// CallStaff pages on-duty staff of the given role on behalf of the caller.
// The cooldown window starts only after the page is delivered, so a failed
// delivery never burns the caller's window.
func (s *Service) CallStaff(ctx context.Context, caller domain.CallerIdentity, role domain.Role) (int, error) {
	if role != domain.RoleBanker && role != domain.RoleInspector {
		return 0, domain.ErrForbidden
	}
	if s.pager == nil {
		return 0, ErrPagerUnavailable
	}

	key := fmt.Sprintf("%s_%s", role, caller.ID)
	remaining, err := s.cooldowns.Remaining(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("cooldown check failed: %w", err)
	}
	if remaining > 0 {
		return 0, &CooldownActiveError{Remaining: remaining}
	}

	notified, err := s.pager.Page(ctx, role, caller.Nickname)
	if err != nil {
		log.Printf("level=error component=app msg=\"staff page failed\" role=%s caller=%s error=%v", role, caller.Nickname, err)
		return 0, err
	}
	if err := s.cooldowns.Mark(ctx, key, s.cooldown); err != nil {
		log.Printf("level=warn component=app msg=\"failed to record cooldown\" key=%s error=%v", key, err)
	}
	log.Printf("level=info component=app msg=\"staff paged\" role=%s caller=%s notified=%d", role, caller.Nickname, notified)
	return notified, nil
}
