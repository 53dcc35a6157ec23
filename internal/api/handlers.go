/**
 * @description
 * This file contains the HTTP handlers for the gateway's API. Handlers
 * parse incoming requests, validate locally what can be validated without a
 * round trip, call the workflows, and map the error taxonomy onto HTTP
 * status codes:
 *
 *   - 401 for actions attempted without an authenticated principal
 *   - 412 for monetary submits without a verified destination account
 *   - 422 for locally rejected input
 *   - the service's own status for deliberate remote rejections
 *   - 502 when the ledger service was unreachable or unintelligible
 *
 * @dependencies
 * - encoding/json, errors, net/http: Standard Go libraries.
 * - internal/domain, internal/session, internal/verify, internal/loan,
 *   internal/wallet, internal/scan: Workflow layer.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/swiftlend/wallet-gateway/internal/domain"
	"github.com/swiftlend/wallet-gateway/internal/loan"
	"github.com/swiftlend/wallet-gateway/internal/scan"
	"github.com/swiftlend/wallet-gateway/internal/session"
	"github.com/swiftlend/wallet-gateway/internal/verify"
	"github.com/swiftlend/wallet-gateway/internal/wallet"
)

// Gateway-side error codes carried in rejection bodies.
const (
	codeUnauthenticated        = "Unauthenticated"
	codeValidation             = "ValidationError"
	codeDestinationNotVerified = "DestinationNotVerified"
	codeOperationInProgress    = "OperationInProgress"
	codeWalletNotFound         = "WalletNotFound"
	codeLedgerUnavailable      = "LedgerUnavailable"
	codeInternal               = "Internal"
)

// LedgerAuth is the slice of the ledger service the auth handlers need.
type LedgerAuth interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.Principal, error)
	Register(ctx context.Context, reg domain.Registration) (domain.Principal, error)
}

// Handlers holds the workflows the routes dispatch into.
type Handlers struct {
	sessions *session.Store
	engine   *verify.Engine
	scanner  *scan.Runner
	loans    *loan.Workflow
	wallets  *wallet.Workflow
	ledger   LedgerAuth
	logger   *slog.Logger

	signingKey []byte
	tokenTTL   time.Duration
}

// NewHandlers creates the handler set.
func NewHandlers(
	sessions *session.Store,
	engine *verify.Engine,
	scanner *scan.Runner,
	loans *loan.Workflow,
	wallets *wallet.Workflow,
	ledger LedgerAuth,
	logger *slog.Logger,
	signingKey []byte,
	tokenTTL time.Duration,
) *Handlers {
	return &Handlers{
		sessions:   sessions,
		engine:     engine,
		scanner:    scanner,
		loans:      loans,
		wallets:    wallets,
		ledger:     ledger,
		logger:     logger,
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
	}
}

type authResponse struct {
	Token string           `json:"token"`
	User  domain.Principal `json:"user"`
}

// LoginHandler authenticates against the ledger service and opens the local
// session.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", codeValidation)
		return
	}
	if creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "email and password are required", codeValidation)
		return
	}

	principal, err := h.ledger.Login(r.Context(), creds)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	if err := h.sessions.Login(r.Context(), principal); err != nil {
		writeError(w, http.StatusInternalServerError, "could not open session", codeInternal)
		return
	}
	h.respondWithSession(w, http.StatusOK, principal)
}

// OnboardingHandler validates registration input locally, creates the
// account remotely, and opens the local session.
func (h *Handlers) OnboardingHandler(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", codeValidation)
		return
	}
	if msg := validateRegistration(reg); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg, codeValidation)
		return
	}

	principal, err := h.ledger.Register(r.Context(), reg)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	if err := h.sessions.Login(r.Context(), principal); err != nil {
		writeError(w, http.StatusInternalServerError, "could not open session", codeInternal)
		return
	}
	h.respondWithSession(w, http.StatusCreated, principal)
}

func (h *Handlers) respondWithSession(w http.ResponseWriter, status int, principal domain.Principal) {
	token, err := MintSessionToken(h.signingKey, principal.ID, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not mint session token", codeInternal)
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: principal})
}

func validateRegistration(reg domain.Registration) string {
	if len(strings.TrimSpace(reg.FullName)) < 2 {
		return "full name must be at least 2 characters"
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		return "email address is not valid"
	}
	if len(reg.Password) < 6 {
		return "password must be at least 6 characters"
	}
	return ""
}

// LogoutHandler closes the local session and clears persisted state.
func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "could not clear session", codeInternal)
		return
	}
	h.loans.Reset(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

// SessionHandler reports the current principal. The token's subject must
// match the restored session: a token minted for a previous principal does
// not grant access to the one currently logged in.
func (h *Handlers) SessionHandler(w http.ResponseWriter, r *http.Request) {
	p := h.sessions.Current()
	if p == nil {
		writeError(w, http.StatusUnauthorized, "no active session", codeUnauthenticated)
		return
	}
	if tokenID, ok := GetPrincipalID(r.Context()); !ok || tokenID != p.ID {
		writeError(w, http.StatusUnauthorized, "token does not match the active session", codeUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": p})
}

// ScanHandler runs the biometric scan simulation to completion and reports
// the verdict.
func (h *Handlers) ScanHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.scanner.Run(r.Context(), nil); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": true, "user": h.sessions.Current()})
}

type verifyAccountRequest struct {
	AccountNumber string `json:"accountNumber"`
}

type verifyAccountResponse struct {
	State         string `json:"state"`
	AccountNumber string `json:"accountNumber,omitempty"`
	OwnerName     string `json:"ownerName,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// VerifyAccountHandler runs a destination account lookup and answers with
// the settled outcome.
func (h *Handlers) VerifyAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", codeValidation)
		return
	}

	if err := h.engine.Verify(r.Context(), req.AccountNumber); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	h.engine.Wait()

	result := h.engine.CurrentResult()
	writeJSON(w, http.StatusOK, verifyAccountResponse{
		State:         result.State.String(),
		AccountNumber: result.AccountNumber,
		OwnerName:     result.OwnerName,
		Reason:        result.Reason,
	})
}

// ListLoansHandler returns the loan catalog.
func (h *Handlers) ListLoansHandler(w http.ResponseWriter, r *http.Request) {
	offers, err := h.loans.LoadOffers(r.Context())
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

type selectLoanRequest struct {
	OfferID string `json:"offerId"`
}

// SelectLoanHandler picks a loan offer and starts a fresh application draft.
func (h *Handlers) SelectLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req selectLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", codeValidation)
		return
	}

	if _, err := h.loans.LoadOffers(r.Context()); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	if err := h.loans.SelectOffer(req.OfferID); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.loans.Status())
}

type applyLoanRequest struct {
	Amount                   int64  `json:"amount"`
	DestinationAccountNumber string `json:"destinationAccountNumber"`
}

// ApplyLoanHandler feeds the draft inputs through the workflow, waits for
// the destination verification to settle, and submits.
func (h *Handlers) ApplyLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req applyLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", codeValidation)
		return
	}

	h.loans.SetAmount(req.Amount)
	h.loans.SetDestination(r.Context(), req.DestinationAccountNumber)
	h.engine.Wait()

	if err := h.loans.Submit(r.Context()); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.loans.Status())
}

// LoanStatusHandler reports the application workflow's current state.
func (h *Handlers) LoanStatusHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.loans.Status())
}

// GetWalletHandler refreshes and reports the wallet view.
func (h *Handlers) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.wallets.Refresh(r.Context()); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.wallets.Status())
}

// ActivateWalletHandler requests wallet creation.
func (h *Handlers) ActivateWalletHandler(w http.ResponseWriter, r *http.Request) {
	created, err := h.wallets.Activate(r.Context())
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"wallet": created})
}

type withdrawRequest struct {
	Amount                int64  `json:"amount"`
	ExternalAccountNumber string `json:"externalAccountNumber"`
}

// WithdrawHandler feeds the withdrawal inputs through the workflow, waits
// for the external account verification to settle, and submits.
func (h *Handlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", codeValidation)
		return
	}

	h.wallets.SetWithdrawalAmount(req.Amount)
	h.wallets.SetExternalAccount(r.Context(), req.ExternalAccountNumber)
	h.engine.Wait()

	if err := h.wallets.Withdraw(r.Context()); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.wallets.Status())
}

// ListTransactionsHandler refreshes and reports the transaction history.
func (h *Handlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.wallets.Refresh(r.Context()); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.wallets.Transactions())
}

// writeTaxonomyError maps a workflow error onto its HTTP representation.
func (h *Handlers) writeTaxonomyError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	var rerr *domain.RemoteError
	var terr *domain.TransportError

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "not authenticated", codeUnauthenticated)
	case errors.Is(err, domain.ErrDestinationNotVerified):
		writeError(w, http.StatusPreconditionFailed, "destination account is not verified", codeDestinationNotVerified)
	case errors.Is(err, wallet.ErrNoWallet):
		writeError(w, http.StatusNotFound, "no wallet has been activated", codeWalletNotFound)
	case errors.Is(err, loan.ErrSubmitInProgress),
		errors.Is(err, wallet.ErrWithdrawInProgress),
		errors.Is(err, scan.ErrScanInProgress):
		writeError(w, http.StatusConflict, err.Error(), codeOperationInProgress)
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Error(), codeValidation)
	case errors.As(err, &rerr):
		status := rerr.HTTPStatus
		if status < http.StatusBadRequest {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, rerr.Message, rerr.Code)
	case errors.As(err, &terr):
		writeError(w, http.StatusBadGateway, "ledger service unavailable", codeLedgerUnavailable)
	default:
		h.logger.Error("unhandled workflow error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", codeInternal)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
