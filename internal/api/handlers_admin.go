/**
 * @description
 * This file contains the HTTP handlers for administrator actions: granting
 * and revoking roles, and freezing or unfreezing accounts. Role checks live
 * in the service; handlers only translate requests and errors.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/playvault/economy-service/internal/domain"
)

// roleChangeRequest is the payload for grant and revoke role endpoints.
type roleChangeRequest struct {
	TargetCardNumber int    `json:"target_card_number"`
	Role             string `json:"role"`
}

// toggleFreezeRequest is the payload for the freeze toggle endpoint.
type toggleFreezeRequest struct {
	TargetCardNumber int `json:"target_card_number"`
}

// GrantRoleHandler adds a role to a target account.
func (h *EconomyHandlers) GrantRoleHandler(w http.ResponseWriter, r *http.Request) {
	h.roleChangeHandler(w, r, true)
}

// RevokeRoleHandler removes a role from a target account.
func (h *EconomyHandlers) RevokeRoleHandler(w http.ResponseWriter, r *http.Request) {
	h.roleChangeHandler(w, r, false)
}

func (h *EconomyHandlers) roleChangeHandler(w http.ResponseWriter, r *http.Request, grant bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req roleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Unknown role")
		return
	}

	var account *domain.Account
	if grant {
		account, err = h.service.GrantRole(r.Context(), caller, req.TargetCardNumber, role)
	} else {
		account, err = h.service.RevokeRole(r.Context(), caller, req.TargetCardNumber, role)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, account.View())
}

// ToggleFreezeHandler flips the frozen state of a target account.
func (h *EconomyHandlers) ToggleFreezeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req toggleFreezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.ToggleFreeze(r.Context(), caller, req.TargetCardNumber)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, account.View())
}
