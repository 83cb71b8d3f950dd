/**
 * @description
 * This file sets up the HTTP router for the economy-service using the
 * go-chi/chi router. It defines the API routes, applies middleware for
 * logging, CORS, and authentication, and maps the routes to their
 * corresponding handler functions.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for chi.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/playvault/economy-service/internal/store"
)

// NewRouter creates a new Chi router and registers the economy-service routes.
func NewRouter(h *EconomyHandlers, repo store.Repository, jwtSecret, internalAPIKey string) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Protected routes that require an authenticated player session.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret, repo))

		r.Post("/transfer", h.TransferHandler)
		r.Get("/transactions", h.ListOwnTransactionsHandler)
		r.Get("/transactions/all", h.ListAllTransactionsHandler)
		r.Get("/balance-history", h.BalanceHistoryHandler)
		r.Get("/accounts/search", h.SearchAccountsHandler)

		// Banker operations
		r.Post("/banker/deposit", h.DepositHandler)
		r.Post("/banker/withdraw", h.WithdrawHandler)
		r.Post("/banker/balance", h.BalanceLookupHandler)

		// Fine lifecycle
		r.Post("/inspector/issue-fine", h.IssueFineHandler)
		r.Get("/inspector/overdue-fines", h.ListOverdueFinesHandler)
		r.Get("/fines", h.ListOwnFinesHandler)
		r.Post("/fines/{fineID}/pay", h.PayFineHandler)

		// Administrator actions
		r.Post("/admin/roles/grant", h.GrantRoleHandler)
		r.Post("/admin/roles/revoke", h.RevokeRoleHandler)
		r.Post("/admin/toggle-freeze", h.ToggleFreezeHandler)

		// Staff paging
		r.Post("/call/banker", h.CallBankerHandler)
		r.Post("/call/inspector", h.CallInspectorHandler)
	})

	// Internal service-to-service endpoints.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/internal/accounts", h.CreateAccountHandler)
	})

	return r
}
