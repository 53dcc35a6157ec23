/**
 * @description
 * The wallet workflow owns activation, refresh, and withdrawal. The client
 * never computes a balance locally: every mutating call is followed by a
 * refresh so the displayed wallet is the ledger's view, not a prediction.
 *
 * Key behaviors:
 * - Activate requests wallet creation and persists a local snapshot for
 *   fast redisplay on the next start.
 * - Refresh fetches the wallet and the transaction list independently; one
 *   failing never blocks the other. A failed wallet fetch renders the
 *   "no wallet" state, a failed transaction fetch renders an empty list.
 * - Withdraw is gated on a verified external account and an amount within
 *   balance, rejected locally before any call otherwise. Success clears the
 *   draft and refreshes; failure leaves the draft intact for correction.
 */

package wallet

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/swiftlend/wallet-gateway/internal/domain"
	"github.com/swiftlend/wallet-gateway/internal/gate"
	"github.com/swiftlend/wallet-gateway/internal/session"
	"github.com/swiftlend/wallet-gateway/internal/verify"
)

// ErrWithdrawInProgress guards against duplicate withdrawal submission.
var ErrWithdrawInProgress = errors.New("a withdrawal is already in progress")

// ErrNoWallet is returned when an action needs an activated wallet.
var ErrNoWallet = errors.New("no wallet")

// LedgerClient is the slice of the ledger service the workflow needs.
type LedgerClient interface {
	CreateWallet(ctx context.Context, principalID string) (domain.Wallet, error)
	GetWallet(ctx context.Context, principalID string) (domain.Wallet, error)
	ListTransactions(ctx context.Context, principalID string) ([]domain.Transaction, error)
	Withdraw(ctx context.Context, principalID string, amount int64, externalAccount string) error
}

// SnapshotCache persists the advisory last-known wallet for redisplay before
// the first refresh completes. The session persisters satisfy it.
type SnapshotCache interface {
	SaveWalletSnapshot(ctx context.Context, w domain.Wallet) error
	LoadWalletSnapshot(ctx context.Context) (domain.Wallet, error)
}

// Snapshot is the externally visible wallet state.
type Snapshot struct {
	HasWallet    bool                   `json:"hasWallet"`
	Wallet       *domain.Wallet         `json:"wallet,omitempty"`
	Transactions []domain.Transaction   `json:"transactions"`
	Draft        domain.WithdrawalDraft `json:"draft"`
	Gate         gate.Decision          `json:"gate"`
}

// Workflow owns the wallet view's state.
type Workflow struct {
	mu      sync.Mutex
	session *session.Store
	engine  *verify.Engine
	ledger  LedgerClient
	cache   SnapshotCache
	logger  *slog.Logger

	wallet       *domain.Wallet
	transactions []domain.Transaction
	draft        domain.WithdrawalDraft
	withdrawing  bool
}

// NewWorkflow wires the workflow to its collaborators.
func NewWorkflow(sess *session.Store, engine *verify.Engine, ledger LedgerClient, cache SnapshotCache, logger *slog.Logger) *Workflow {
	return &Workflow{
		session: sess,
		engine:  engine,
		ledger:  ledger,
		cache:   cache,
		logger:  logger,
	}
}

// RestoreSnapshot loads the advisory cached wallet, if any, so the view has
// something to show before the first refresh completes. The cache is
// overwritten by the next successful fetch.
func (w *Workflow) RestoreSnapshot(ctx context.Context) {
	cached, err := w.cache.LoadWalletSnapshot(ctx)
	if err != nil {
		return
	}
	w.mu.Lock()
	if w.wallet == nil {
		w.wallet = &cached
	}
	w.mu.Unlock()
}

// Activate requests wallet creation from the ledger service. On failure the
// view stays in the "no wallet" state.
func (w *Workflow) Activate(ctx context.Context) (domain.Wallet, error) {
	p := w.session.Current()
	if p == nil {
		return domain.Wallet{}, domain.ErrUnauthenticated
	}

	created, err := w.ledger.CreateWallet(ctx, p.ID)
	if err != nil {
		w.logger.Warn("wallet activation failed", "principal", p.ID, "error", err)
		return domain.Wallet{}, err
	}

	w.mu.Lock()
	w.wallet = &created
	w.mu.Unlock()

	if err := w.cache.SaveWalletSnapshot(ctx, created); err != nil {
		w.logger.Debug("could not cache wallet snapshot", "error", err)
	}
	w.logger.Info("wallet activated", "account", created.AccountNumber)
	return created, nil
}

// Refresh re-fetches the wallet and the transaction list. The two fetches
// fail independently: a wallet failure renders "no wallet", a transaction
// failure renders an empty list, and neither blocks the other.
func (w *Workflow) Refresh(ctx context.Context) error {
	p := w.session.Current()
	if p == nil {
		return domain.ErrUnauthenticated
	}

	fetched, walletErr := w.ledger.GetWallet(ctx, p.ID)
	transactions, txErr := w.ledger.ListTransactions(ctx, p.ID)

	w.mu.Lock()
	if walletErr != nil {
		w.wallet = nil
	} else {
		w.wallet = &fetched
	}
	if txErr != nil {
		w.transactions = nil
	} else {
		w.transactions = transactions
	}
	w.mu.Unlock()

	if walletErr != nil {
		w.logger.Warn("wallet fetch failed", "principal", p.ID, "error", walletErr)
	} else if err := w.cache.SaveWalletSnapshot(ctx, fetched); err != nil {
		w.logger.Debug("could not cache wallet snapshot", "error", err)
	}
	if txErr != nil {
		w.logger.Warn("transaction fetch failed", "principal", p.ID, "error", txErr)
	}
	return nil
}

// SetWithdrawalAmount records the amount; bounds apply at the gate.
func (w *Workflow) SetWithdrawalAmount(amount int64) {
	w.mu.Lock()
	w.draft.Amount = amount
	w.mu.Unlock()
}

// SetExternalAccount records the external account text and routes it
// through the verification engine.
func (w *Workflow) SetExternalAccount(ctx context.Context, text string) {
	w.mu.Lock()
	w.draft.ExternalAccountNumber = text
	w.mu.Unlock()

	w.engine.OnInputChanged(ctx, text)
}

// Withdraw submits the draft. Requirements are checked locally first: an
// authenticated principal, an activated wallet, a verified external account
// and 0 < amount <= balance. No call is made otherwise. On success the
// draft is cleared and the authoritative state re-fetched; on failure the
// draft stays intact.
func (w *Workflow) Withdraw(ctx context.Context) error {
	w.mu.Lock()
	if w.withdrawing {
		w.mu.Unlock()
		return ErrWithdrawInProgress
	}

	p := w.session.Current()
	if p == nil {
		w.mu.Unlock()
		return domain.ErrUnauthenticated
	}
	if w.wallet == nil {
		w.mu.Unlock()
		return ErrNoWallet
	}

	result := w.engine.CurrentResult()
	if !result.Verified() || result.AccountNumber != w.draft.ExternalAccountNumber {
		w.mu.Unlock()
		return domain.ErrDestinationNotVerified
	}
	if d := gate.ForWithdrawal(p, result, w.draft.Amount, w.wallet.Balance); !d.Enabled {
		w.mu.Unlock()
		return domain.Validationf("amount", "%s", d.Reason)
	}

	w.withdrawing = true
	draft := w.draft
	w.mu.Unlock()

	err := w.ledger.Withdraw(ctx, p.ID, draft.Amount, draft.ExternalAccountNumber)

	w.mu.Lock()
	w.withdrawing = false
	if err != nil {
		// The form stays open with the entered values intact.
		w.mu.Unlock()
		w.logger.Warn("withdrawal failed", "amount", draft.Amount, "error", err)
		return err
	}
	w.draft = domain.WithdrawalDraft{}
	w.mu.Unlock()

	w.logger.Info("withdrawal accepted", "amount", draft.Amount, "external", draft.ExternalAccountNumber)

	// Authoritative post-withdrawal state; never local arithmetic.
	return w.Refresh(ctx)
}

// Wallet returns the current wallet, or nil in the "no wallet" state.
func (w *Workflow) Wallet() *domain.Wallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.wallet == nil {
		return nil
	}
	copied := *w.wallet
	return &copied
}

// Transactions returns the last fetched ledger entries, newest first
// (server-determined order).
func (w *Workflow) Transactions() []domain.Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.Transaction{}, w.transactions...)
}

// Gate recomputes the withdrawal enablement decision.
func (w *Workflow) Gate() gate.Decision {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.wallet == nil {
		return gate.Decision{Reason: "no wallet"}
	}
	return gate.ForWithdrawal(w.session.Current(), w.engine.CurrentResult(), w.draft.Amount, w.wallet.Balance)
}

// Status reports the full externally visible state.
func (w *Workflow) Status() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		Transactions: append([]domain.Transaction{}, w.transactions...),
		Draft:        w.draft,
	}
	if w.wallet != nil {
		copied := *w.wallet
		snap.HasWallet = true
		snap.Wallet = &copied
		snap.Gate = gate.ForWithdrawal(w.session.Current(), w.engine.CurrentResult(), w.draft.Amount, w.wallet.Balance)
	} else {
		snap.Gate = gate.Decision{Reason: "no wallet"}
	}
	return snap
}
