/**
 * @description
 * This package provides the HTTP client for the remote ledger/identity
 * service. It encapsulates the request/response contract the gateway
 * consumes: login, registration, biometric verification, account lookup,
 * the loan catalog, loan issuance, wallet creation/fetch, withdrawal, and
 * transaction history.
 *
 * Key features:
 * - Manages the API base URL and static API key.
 * - Distinguishes deliberate rejections (domain.RemoteError, decoded from
 *   the service's error body) from transport-level failures
 *   (domain.TransportError) so workflows can apply the right propagation
 *   policy.
 * - Every call takes a context; the underlying client enforces a timeout.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http, time: Standard Go libraries.
 * - internal/domain for the shared models and error taxonomy.
 */

package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/swiftlend/wallet-gateway/internal/domain"
)

// Client is a client for the ledger/identity service API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new ledger API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type authResponse struct {
	User domain.Principal `json:"user"`
}

// Login authenticates against the identity service.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.Principal, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/login", creds, &resp)
	if err != nil {
		return domain.Principal{}, err
	}
	return resp.User, nil
}

// Register creates a new account on the identity service.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (domain.Principal, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/onboarding", reg, &resp)
	if err != nil {
		return domain.Principal{}, err
	}
	return resp.User, nil
}

// SubmitVerificationScan reports a completed biometric scan and returns the
// service's verdict.
func (c *Client) SubmitVerificationScan(ctx context.Context, principalID string) (bool, error) {
	req := map[string]string{"userId": principalID}
	var resp struct {
		Verified bool `json:"verified"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/verify", req, &resp); err != nil {
		return false, err
	}
	return resp.Verified, nil
}

// LookupAccount resolves a destination account number to its owner. The
// endpoint is idempotent and safe to call redundantly; it provides no
// ordering contract, which is why the verification engine enforces one.
func (c *Client) LookupAccount(ctx context.Context, accountNumber string) (domain.AccountLookupResult, error) {
	var resp domain.AccountLookupResult
	path := "/api/wallet/lookup/" + url.PathEscape(accountNumber)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return domain.AccountLookupResult{}, err
	}
	return resp, nil
}

// ListLoanOffers fetches the static loan catalog.
func (c *Client) ListLoanOffers(ctx context.Context) ([]domain.LoanOffer, error) {
	var resp []domain.LoanOffer
	if err := c.do(ctx, http.MethodGet, "/api/loans/static", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ApplyForLoan submits a loan application disbursed to the destination
// account.
func (c *Client) ApplyForLoan(ctx context.Context, principalID, offerID string, amount int64, destination string) error {
	req := map[string]any{
		"userId":        principalID,
		"loanId":        offerID,
		"amount":        amount,
		"accountNumber": destination,
	}
	var resp struct {
		Accepted bool `json:"accepted"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/loans/apply", req, &resp); err != nil {
		return err
	}
	if !resp.Accepted {
		return &domain.RemoteError{Code: domain.CodeApplicationRejected, Message: "application was not accepted"}
	}
	return nil
}

// CreateWallet activates a wallet for the principal.
func (c *Client) CreateWallet(ctx context.Context, principalID string) (domain.Wallet, error) {
	req := map[string]string{"userId": principalID}
	var resp struct {
		Wallet domain.Wallet `json:"wallet"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/wallet/create", req, &resp); err != nil {
		return domain.Wallet{}, err
	}
	return resp.Wallet, nil
}

// GetWallet fetches the authoritative wallet state.
func (c *Client) GetWallet(ctx context.Context, principalID string) (domain.Wallet, error) {
	var resp domain.Wallet
	path := "/api/wallet/" + url.PathEscape(principalID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return domain.Wallet{}, err
	}
	return resp, nil
}

// ListTransactions fetches the transaction history, ordered by the service
// (date descending).
func (c *Client) ListTransactions(ctx context.Context, principalID string) ([]domain.Transaction, error) {
	var resp []domain.Transaction
	path := "/api/transactions/" + url.PathEscape(principalID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Withdraw moves wallet funds to an external account.
func (c *Client) Withdraw(ctx context.Context, principalID string, amount int64, externalAccount string) error {
	req := map[string]any{
		"userId":          principalID,
		"amount":          amount,
		"externalAccount": externalAccount,
	}
	var resp struct {
		Accepted bool `json:"accepted"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/wallet/withdraw", req, &resp); err != nil {
		return err
	}
	if !resp.Accepted {
		return &domain.RemoteError{Code: domain.CodeWithdrawalRejected, Message: "withdrawal was not accepted"}
	}
	return nil
}

// errorBody is the ledger service's rejection payload.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// do performs one request/response round trip and maps failures onto the
// shared error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		if err := json.Unmarshal(data, &eb); err != nil || eb.Error == "" {
			return &domain.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
		}
		return &domain.RemoteError{Code: eb.Code, Message: eb.Error, HTTPStatus: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
