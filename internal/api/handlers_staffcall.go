/**
 * @description
 * This file contains the HTTP handlers for staff paging. A call that lands
 * inside an active cooldown window answers 429 with a Retry-After header.
 */

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/playvault/economy-service/internal/app"
	"github.com/playvault/economy-service/internal/domain"
)

// CallBankerHandler pages on-duty bankers on behalf of the caller.
func (h *EconomyHandlers) CallBankerHandler(w http.ResponseWriter, r *http.Request) {
	h.callStaffHandler(w, r, domain.RoleBanker)
}

// CallInspectorHandler pages on-duty inspectors on behalf of the caller.
func (h *EconomyHandlers) CallInspectorHandler(w http.ResponseWriter, r *http.Request) {
	h.callStaffHandler(w, r, domain.RoleInspector)
}

func (h *EconomyHandlers) callStaffHandler(w http.ResponseWriter, r *http.Request, role domain.Role) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	notified, err := h.service.CallStaff(r.Context(), caller, role)
	if err != nil {
		var cooldownErr *app.CooldownActiveError
		if errors.As(err, &cooldownErr) {
			w.Header().Set("Retry-After", strconv.Itoa(cooldownErr.RetryAfterSeconds()))
			h.writeError(w, http.StatusTooManyRequests, cooldownErr.Error())
			return
		}
		if errors.Is(err, app.ErrPagerUnavailable) {
			h.writeError(w, http.StatusServiceUnavailable, "Staff paging is currently unavailable")
			return
		}
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       fmt.Sprintf("Call sent to %d staff member(s)", notified),
		"notifiedCount": notified,
	})
}
