/**
 * @description
 * In-memory ledger/identity service for local development and
 * integration-style tests. It implements the HTTP contract the gateway's
 * ledger client consumes: login, onboarding, biometric verification,
 * account lookup, the loan catalog, loan issuance, wallet lifecycle,
 * withdrawal, and transaction history.
 *
 * Key features:
 * - Purely in-memory; restarting the process resets all state.
 * - Passwords are bcrypt-hashed even here so onboarding exercises the same
 *   code path a real identity service would.
 * - A seeded directory of external account numbers answers lookups; wallets
 *   created through the API join the directory.
 * - Optional artificial latency on lookups, for exercising out-of-order
 *   completion handling in clients.
 * - Rejections use the `{"error": ..., "code": ...}` body the ledger client
 *   decodes into its error taxonomy.
 */

package ledgersim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/swiftlend/wallet-gateway/internal/domain"
)

// Options configures the simulator.
type Options struct {
	// APIKey, when non-empty, is required in the X-Api-Key header on every
	// request.
	APIKey string
	// LookupLatency, when positive, delays each account lookup by a random
	// duration up to this bound.
	LookupLatency time.Duration
}

type account struct {
	principal    domain.Principal
	passwordHash []byte
}

// Simulator holds the in-memory ledger state and serves the HTTP contract.
type Simulator struct {
	mu sync.Mutex

	accounts     map[string]*account            // keyed by email
	byID         map[string]*account            // keyed by principal id
	wallets      map[string]*domain.Wallet      // keyed by principal id
	transactions map[string][]domain.Transaction // keyed by principal id
	directory    map[string]string              // account number -> owner name
	offers       []domain.LoanOffer

	opts   Options
	logger *slog.Logger
}

// New creates a simulator with the seeded directory and loan catalog.
func New(logger *slog.Logger, opts Options) *Simulator {
	return &Simulator{
		accounts:     make(map[string]*account),
		byID:         make(map[string]*account),
		wallets:      make(map[string]*domain.Wallet),
		transactions: make(map[string][]domain.Transaction),
		directory: map[string]string{
			"1234567890": "Jane Doe",
			"9876543210": "John Smith",
			"5550001234": "Acme Savings Ltd",
		},
		offers: []domain.LoanOffer{
			{ID: "starter", Name: "Starter Loan", InterestRate: "5%", MaxAmount: 100_000},
			{ID: "growth", Name: "Growth Loan", InterestRate: "8%", MaxAmount: 500_000},
			{ID: "business", Name: "Business Loan", InterestRate: "12%", MaxAmount: 2_000_000},
		},
		opts:   opts,
		logger: logger,
	}
}

// Router builds the simulator's HTTP handler.
func (s *Simulator) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requireAPIKey)

	r.Post("/api/login", s.handleLogin)
	r.Post("/api/onboarding", s.handleOnboarding)
	r.Post("/api/verify", s.handleVerify)
	r.Get("/api/wallet/lookup/{accountNumber}", s.handleLookup)
	r.Get("/api/loans/static", s.handleLoanCatalog)
	r.Post("/api/loans/apply", s.handleLoanApply)
	r.Post("/api/wallet/create", s.handleWalletCreate)
	r.Get("/api/wallet/{userId}", s.handleWalletGet)
	r.Get("/api/transactions/{userId}", s.handleTransactions)
	r.Post("/api/wallet/withdraw", s.handleWithdraw)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func (s *Simulator) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey != "" && r.Header.Get("X-Api-Key") != s.opts.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid api key", "InvalidApiKey")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Simulator) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", domain.CodeValidation)
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[creds.Email]
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password", domain.CodeInvalidCredentials)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": acct.principal})
}

func (s *Simulator) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", domain.CodeValidation)
		return
	}
	if reg.FullName == "" || reg.Email == "" || reg.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "fullName, email and password are required", domain.CodeValidation)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not hash password", "Internal")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[reg.Email]; exists {
		writeError(w, http.StatusConflict, "an account with this email already exists", domain.CodeEmailTaken)
		return
	}

	acct := &account{
		principal: domain.Principal{
			ID:       uuid.NewString(),
			FullName: reg.FullName,
			Email:    reg.Email,
		},
		passwordHash: hash,
	}
	s.accounts[reg.Email] = acct
	s.byID[acct.principal.ID] = acct

	s.logger.Info("account created", "email", reg.Email)
	writeJSON(w, http.StatusCreated, map[string]any{"user": acct.principal})
}

func (s *Simulator) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", domain.CodeValidation)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[req.UserID]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown user", domain.CodeValidation)
		return
	}
	acct.principal.Verified = true
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (s *Simulator) handleLookup(w http.ResponseWriter, r *http.Request) {
	if d := s.opts.LookupLatency; d > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(d))) + time.Millisecond)
	}

	accountNumber := chi.URLParam(r, "accountNumber")

	s.mu.Lock()
	owner, ok := s.directory[accountNumber]
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.AccountLookupResult{Valid: ok, OwnerName: owner})
}

func (s *Simulator) handleLoanCatalog(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	offers := append([]domain.LoanOffer{}, s.offers...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, offers)
}

func (s *Simulator) handleLoanApply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string `json:"userId"`
		LoanID        string `json:"loanId"`
		Amount        int64  `json:"amount"`
		AccountNumber string `json:"accountNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", domain.CodeValidation)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[req.UserID]; !ok {
		writeError(w, http.StatusNotFound, "unknown user", domain.CodeValidation)
		return
	}

	var offer *domain.LoanOffer
	for i := range s.offers {
		if s.offers[i].ID == req.LoanID {
			offer = &s.offers[i]
			break
		}
	}
	if offer == nil {
		writeError(w, http.StatusUnprocessableEntity, "unknown loan product", domain.CodeApplicationRejected)
		return
	}
	if req.Amount <= 0 || req.Amount > offer.MaxAmount {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("amount must be between 1 and %d", offer.MaxAmount), domain.CodeApplicationRejected)
		return
	}
	if _, ok := s.directory[req.AccountNumber]; !ok {
		writeError(w, http.StatusUnprocessableEntity, "unknown destination account", domain.CodeApplicationRejected)
		return
	}

	s.logger.Info("loan disbursed", "user", req.UserID, "loan", req.LoanID, "amount", req.Amount, "destination", req.AccountNumber)
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

func (s *Simulator) handleWalletCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", domain.CodeValidation)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[req.UserID]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown user", domain.CodeValidation)
		return
	}
	if existing, ok := s.wallets[req.UserID]; ok {
		// Activation is idempotent; re-activating returns the same wallet.
		writeJSON(w, http.StatusOK, map[string]any{"wallet": existing})
		return
	}

	wallet := &domain.Wallet{
		AccountNumber: s.newAccountNumber(),
		Balance:       0,
	}
	s.wallets[req.UserID] = wallet
	s.directory[wallet.AccountNumber] = acct.principal.FullName

	s.logger.Info("wallet created", "user", req.UserID, "account", wallet.AccountNumber)
	writeJSON(w, http.StatusCreated, map[string]any{"wallet": wallet})
}

func (s *Simulator) handleWalletGet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	s.mu.Lock()
	wallet, ok := s.wallets[userID]
	var copied domain.Wallet
	if ok {
		copied = *wallet
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "no wallet for this user", domain.CodeWalletNotFound)
		return
	}
	writeJSON(w, http.StatusOK, copied)
}

func (s *Simulator) handleTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	s.mu.Lock()
	list := append([]domain.Transaction{}, s.transactions[userID]...)
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Date.After(list[j].Date) })
	writeJSON(w, http.StatusOK, list)
}

func (s *Simulator) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID          string `json:"userId"`
		Amount          int64  `json:"amount"`
		ExternalAccount string `json:"externalAccount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", domain.CodeValidation)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, ok := s.wallets[req.UserID]
	if !ok {
		writeError(w, http.StatusNotFound, "no wallet for this user", domain.CodeWalletNotFound)
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "amount must be positive", domain.CodeValidation)
		return
	}
	if _, ok := s.directory[req.ExternalAccount]; !ok {
		writeError(w, http.StatusUnprocessableEntity, "unknown external account", domain.CodeExternalAccountInvalid)
		return
	}
	if req.Amount > wallet.Balance {
		writeError(w, http.StatusUnprocessableEntity, "insufficient funds", domain.CodeInsufficientFunds)
		return
	}

	wallet.Balance -= req.Amount
	s.transactions[req.UserID] = append(s.transactions[req.UserID], domain.Transaction{
		ID:              uuid.NewString(),
		Type:            domain.TransactionWithdrawal,
		Amount:          req.Amount,
		Status:          "Completed",
		Date:            time.Now().UTC(),
		ExternalAccount: req.ExternalAccount,
	})

	s.logger.Info("withdrawal completed", "user", req.UserID, "amount", req.Amount, "external", req.ExternalAccount)
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

// Deposit credits a wallet directly. It has no HTTP route; tests and the
// dev binary use it to seed balances.
func (s *Simulator) Deposit(principalID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, ok := s.wallets[principalID]
	if !ok {
		return fmt.Errorf("no wallet for principal %s", principalID)
	}
	wallet.Balance += amount
	s.transactions[principalID] = append(s.transactions[principalID], domain.Transaction{
		ID:     uuid.NewString(),
		Type:   domain.TransactionDeposit,
		Amount: amount,
		Status: "Completed",
		Date:   time.Now().UTC(),
	})
	return nil
}

// newAccountNumber issues an unused 10-digit account number. Caller holds
// the lock.
func (s *Simulator) newAccountNumber() string {
	for {
		n := fmt.Sprintf("%010d", rand.Int63n(1_000_000_0000))
		if _, taken := s.directory[n]; !taken {
			return n
		}
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
