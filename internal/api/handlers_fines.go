/**
 * @description
 * This file contains the HTTP handlers for the fine lifecycle: inspectors
 * issuing fines, players listing and paying their fines, and the overdue
 * fines report for inspectors.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/playvault/economy-service/internal/domain"
)

// IssueFineHandler creates a fine against a target account.
func (h *EconomyHandlers) IssueFineHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req domain.IssueFineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fine, err := h.service.IssueFine(r.Context(), caller, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, fine)
}

// PayFineHandler settles a fine the caller owes.
func (h *EconomyHandlers) PayFineHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	fineID, err := uuid.Parse(chi.URLParam(r, "fineID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid fine ID")
		return
	}

	result, err := h.service.PayFine(r.Context(), caller, fineID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "Fine paid successfully",
		"newBalance":       result.NewBalance,
		"unpaidFinesCount": result.UnpaidFinesCount,
	})
}

// ListOwnFinesHandler returns the caller's unpaid fines.
func (h *EconomyHandlers) ListOwnFinesHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	fines, err := h.service.ListOwnUnpaidFines(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if fines == nil {
		fines = []domain.Fine{}
	}
	h.writeJSON(w, http.StatusOK, fines)
}

// ListOverdueFinesHandler returns the calling inspector's overdue fines.
func (h *EconomyHandlers) ListOverdueFinesHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	fines, err := h.service.ListOverdueFines(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if fines == nil {
		fines = []domain.Fine{}
	}
	h.writeJSON(w, http.StatusOK, fines)
}
