/**
 * @description
 * This file sets up the HTTP router for the gateway. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * middleware for logging, panic recovery, CORS for the local UI origin, and
 * session authentication on the protected group.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the browser-based UI.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes creates and returns the gateway router.
func Routes(h *Handlers, signingKey []byte, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Session entry points; no token yet.
	r.Post("/api/login", h.LoginHandler)
	r.Post("/api/onboarding", h.OnboardingHandler)

	// Group routes that require an authenticated session.
	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(signingKey))

		r.Post("/api/logout", h.LogoutHandler)
		r.Get("/api/session", h.SessionHandler)

		r.Post("/api/verify/scan", h.ScanHandler)
		r.Post("/api/accounts/verify", h.VerifyAccountHandler)

		r.Get("/api/loans", h.ListLoansHandler)
		r.Get("/api/loans/status", h.LoanStatusHandler)
		r.Post("/api/loans/select", h.SelectLoanHandler)
		r.Post("/api/loans/apply", h.ApplyLoanHandler)

		r.Get("/api/wallet", h.GetWalletHandler)
		r.Post("/api/wallet", h.ActivateWalletHandler)
		r.Post("/api/wallet/withdraw", h.WithdrawHandler)
		r.Get("/api/transactions", h.ListTransactionsHandler)
	})

	return r
}
