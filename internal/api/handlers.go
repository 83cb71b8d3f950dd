/**
 * @description
 * This file contains the HTTP handlers for the economy-service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/playvault/economy-service/internal/app"
	"github.com/playvault/economy-service/internal/domain"
	"github.com/playvault/economy-service/internal/store"
)

// EconomyHandlers holds the application service that handlers will use.
type EconomyHandlers struct {
	service *app.Service
}

// NewEconomyHandlers creates a new instance of EconomyHandlers.
func NewEconomyHandlers(service *app.Service) *EconomyHandlers {
	return &EconomyHandlers{service: service}
}

func (h *EconomyHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *EconomyHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// caller pulls the authenticated identity off the context; a miss means the
// auth middleware did not run, which is a routing bug.
func (h *EconomyHandlers) caller(w http.ResponseWriter, r *http.Request) (domain.CallerIdentity, bool) {
	caller, ok := GetCaller(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not resolve caller identity")
	}
	return caller, ok
}

// writeServiceError maps application and store errors onto HTTP statuses.
func (h *EconomyHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrSelfTransfer),
		errors.Is(err, app.ErrSelfFine),
		errors.Is(err, app.ErrInvalidDueDays),
		errors.Is(err, app.ErrRoleAlreadyHeld),
		errors.Is(err, app.ErrRoleNotHeld):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrSenderNotFound):
		h.writeError(w, http.StatusNotFound, "Sender card number not found")
	case errors.Is(err, app.ErrReceiverNotFound):
		h.writeError(w, http.StatusNotFound, "Receiver card number not found")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrFineNotFound):
		h.writeError(w, http.StatusNotFound, "Fine not found")
	case errors.Is(err, app.ErrReceiverFrozen):
		h.writeError(w, http.StatusForbidden, "Receiver account is frozen")
	case errors.Is(err, app.ErrTargetFrozen):
		h.writeError(w, http.StatusForbidden, "Target account is frozen")
	case errors.Is(err, app.ErrNotFineDebtor):
		h.writeError(w, http.StatusForbidden, "This fine was not issued to you")
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "You do not have permission to perform this action")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, store.ErrFineAlreadyPaid):
		h.writeError(w, http.StatusBadRequest, "Fine has already been paid")
	case errors.Is(err, store.ErrDuplicateCardNumber),
		errors.Is(err, store.ErrDuplicateNickname):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// TransferHandler handles player-to-player transfer requests.
func (h *EconomyHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	senderBalance, err := h.service.Transfer(r.Context(), caller, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Transfer successful",
		"senderBalance": senderBalance,
	})
}

// DepositHandler handles banker deposits onto a target card.
func (h *EconomyHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.adjustHandler(w, r, app.AdjustDeposit)
}

// WithdrawHandler handles banker withdrawals from a target card.
func (h *EconomyHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.adjustHandler(w, r, app.AdjustWithdrawal)
}

func (h *EconomyHandlers) adjustHandler(w http.ResponseWriter, r *http.Request, direction app.AdjustDirection) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req domain.BankerAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	newBalance, err := h.service.BankerAdjust(r.Context(), caller, req.TargetCardNumber, req.Amount, direction)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Operation successful",
		"newBalance": newBalance,
	})
}

// BalanceLookupHandler returns a staff snapshot of a target account.
func (h *EconomyHandlers) BalanceLookupHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req domain.BalanceLookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.BalanceLookup(r.Context(), caller, req.TargetCardNumber)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ListOwnTransactionsHandler returns the caller's recent ledger entries.
func (h *EconomyHandlers) ListOwnTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	transactions, err := h.service.ListOwnTransactions(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// ListAllTransactionsHandler returns recent ledger entries across all accounts.
func (h *EconomyHandlers) ListAllTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	transactions, err := h.service.ListAllTransactions(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// BalanceHistoryHandler returns the caller's reconstructed balance series.
func (h *EconomyHandlers) BalanceHistoryHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	points, err := h.service.BalanceHistory(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if points == nil {
		points = []domain.BalancePoint{}
	}
	h.writeJSON(w, http.StatusOK, points)
}

// SearchAccountsHandler finds accounts by nickname fragment or card prefix.
func (h *EconomyHandlers) SearchAccountsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	results, err := h.service.SearchAccounts(r.Context(), caller, query.Get("nickname"), query.Get("cardNumber"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if results == nil {
		results = []domain.AccountSummary{}
	}
	h.writeJSON(w, http.StatusOK, results)
}

// createAccountRequest is the payload for the internal provisioning endpoint.
type createAccountRequest struct {
	Nickname string `json:"nickname"`
}

// CreateAccountHandler provisions a new account. Internal endpoint, called
// by the identity service when a player first joins.
func (h *EconomyHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Nickname == "" {
		h.writeError(w, http.StatusBadRequest, "Nickname is required")
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req.Nickname)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, account.View())
}
