/**
 * @description
 * This file defines the account model and the role set used across the
 * economy-service. Accounts are identified publicly by a 5-digit card number
 * and internally by a UUID; balances are stored as int64 in "ab", the
 * abstract in-game currency unit, which avoids floating-point inaccuracies.
 *
 * @notes
 * - Roles are a bitmask set rather than independent booleans so that
 *   "any of" checks compose without enumerating flag combinations.
 */

package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Card number space. TreasuryCardNumber is reserved and never assigned
// to a player account; fine payments are routed to it.
const (
	CardNumberMin      = 10000
	CardNumberMax      = 99999
	TreasuryCardNumber = 10000
)

// Role is a single privileged role bit.
type Role uint8

const (
	RoleBanker Role = 1 << iota
	RoleAdmin
	RoleInspector
	RoleJudge
)

// ErrUnknownRole is returned when parsing a role name that does not exist.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole maps a role name from an API request to its bit.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "banker":
		return RoleBanker, nil
	case "admin":
		return RoleAdmin, nil
	case "inspector":
		return RoleInspector, nil
	case "judge":
		return RoleJudge, nil
	default:
		return 0, ErrUnknownRole
	}
}

// String returns the canonical lowercase name of a single role bit.
func (r Role) String() string {
	switch r {
	case RoleBanker:
		return "banker"
	case RoleAdmin:
		return "admin"
	case RoleInspector:
		return "inspector"
	case RoleJudge:
		return "judge"
	default:
		return "unknown"
	}
}

// RoleSet is a combination of role bits held by one account.
type RoleSet uint8

// Has reports whether every bit of role is present in the set.
func (s RoleSet) Has(role Role) bool {
	return s&RoleSet(role) == RoleSet(role)
}

// HasAny reports whether at least one of the given roles is present.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, role := range roles {
		if s.Has(role) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of the given roles is present.
func (s RoleSet) HasAll(roles ...Role) bool {
	for _, role := range roles {
		if !s.Has(role) {
			return false
		}
	}
	return true
}

// With returns a copy of the set with role added.
func (s RoleSet) With(role Role) RoleSet {
	return s | RoleSet(role)
}

// Without returns a copy of the set with role removed.
func (s RoleSet) Without(role Role) RoleSet {
	return s &^ RoleSet(role)
}

// Account represents one holder of balance in the economy. It maps to the
// `accounts` table; the role bits are persisted as individual boolean
// columns for queryability and folded into a RoleSet when scanned.
type Account struct {
	ID         uuid.UUID `json:"id"`
	CardNumber int       `json:"card_number"`
	Nickname   string    `json:"nickname"`
	Balance    int64     `json:"balance"` // in ab
	Roles      RoleSet   `json:"-"`
	IsFrozen   bool      `json:"is_frozen"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsBanker and friends keep the JSON surface compatible with clients that
// expect per-role flags.
func (a *Account) IsBanker() bool    { return a.Roles.Has(RoleBanker) }
func (a *Account) IsAdmin() bool     { return a.Roles.Has(RoleAdmin) }
func (a *Account) IsInspector() bool { return a.Roles.Has(RoleInspector) }
func (a *Account) IsJudge() bool     { return a.Roles.Has(RoleJudge) }

// AccountView is the API-facing projection of an account, with role flags
// expanded for clients.
type AccountView struct {
	ID          uuid.UUID `json:"id"`
	CardNumber  int       `json:"card_number"`
	Nickname    string    `json:"nickname"`
	Balance     int64     `json:"balance"`
	IsBanker    bool      `json:"is_banker"`
	IsAdmin     bool      `json:"is_admin"`
	IsInspector bool      `json:"is_inspector"`
	IsJudge     bool      `json:"is_judge"`
	IsFrozen    bool      `json:"is_frozen"`
	CreatedAt   time.Time `json:"created_at"`
}

// View expands the role set into the flag form used on the wire.
func (a *Account) View() AccountView {
	return AccountView{
		ID:          a.ID,
		CardNumber:  a.CardNumber,
		Nickname:    a.Nickname,
		Balance:     a.Balance,
		IsBanker:    a.IsBanker(),
		IsAdmin:     a.IsAdmin(),
		IsInspector: a.IsInspector(),
		IsJudge:     a.IsJudge(),
		IsFrozen:    a.IsFrozen,
		CreatedAt:   a.CreatedAt,
	}
}

// AccountSummary is the trimmed projection returned by account search.
type AccountSummary struct {
	ID         uuid.UUID `json:"id"`
	Nickname   string    `json:"nickname"`
	CardNumber int       `json:"card_number"`
}

// CallerIdentity is the resolved principal for one request: who is acting,
// which card they own, and which privileged roles they hold. It is produced
// by the auth middleware and consumed by the authorization predicates.
type CallerIdentity struct {
	ID         uuid.UUID
	CardNumber int
	Nickname   string
	Roles      RoleSet
	IsFrozen   bool
}

// ErrForbidden is the stable outcome of every failed authorization predicate.
var ErrForbidden = errors.New("forbidden")

// RequireAny fails unless the caller holds at least one of the given roles.
func (c CallerIdentity) RequireAny(roles ...Role) error {
	if !c.Roles.HasAny(roles...) {
		return ErrForbidden
	}
	return nil
}

// RequireNotFrozen fails when the caller's account is frozen.
func (c CallerIdentity) RequireNotFrozen() error {
	if c.IsFrozen {
		return ErrForbidden
	}
	return nil
}

// RequireOwnership fails unless the caller's own card matches cardNumber.
// Roles never substitute for ownership.
func (c CallerIdentity) RequireOwnership(cardNumber int) error {
	if c.CardNumber != cardNumber {
		return ErrForbidden
	}
	return nil
}
