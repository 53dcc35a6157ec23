/**
 * @description
 * The loan workflow drives offer selection, drafting, verification-gated
 * submission, and the post-approval transition. It owns its draft
 * exclusively; the principal and the latest verification result are only
 * ever read, at the moment of the action.
 *
 * State machine:
 *   SelectingOffer -> DraftingAmount -> AwaitingVerification ->
 *   ReadyToSubmit -> Submitting -> Approved | Failed
 *
 * Failure semantics: a rejected or unreachable submission preserves the
 * entire draft (offer, amount, destination, verification state) so the user
 * retries without re-entering anything. A successful submission destroys
 * the draft, carries the verified owner name and account for display, and
 * schedules a one-time navigation to the wallet view after a fixed delay.
 */

package loan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/swiftlend/wallet-gateway/internal/domain"
	"github.com/swiftlend/wallet-gateway/internal/gate"
	"github.com/swiftlend/wallet-gateway/internal/session"
	"github.com/swiftlend/wallet-gateway/internal/verify"
)

// RedirectDelay is how long the approval screen stays up before the
// scheduled navigation to the wallet view fires.
const RedirectDelay = 3 * time.Second

// ErrSubmitInProgress guards against duplicate submission while a request
// is outstanding.
var ErrSubmitInProgress = errors.New("a submission is already in progress")

// State is the workflow's position in the loan state machine.
type State int

const (
	StateSelectingOffer State = iota
	StateDraftingAmount
	StateAwaitingVerification
	StateReadyToSubmit
	StateSubmitting
	StateApproved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSelectingOffer:
		return "selecting_offer"
	case StateDraftingAmount:
		return "drafting_amount"
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateReadyToSubmit:
		return "ready_to_submit"
	case StateSubmitting:
		return "submitting"
	case StateApproved:
		return "approved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LedgerClient is the slice of the ledger service the workflow needs.
type LedgerClient interface {
	ListLoanOffers(ctx context.Context) ([]domain.LoanOffer, error)
	ApplyForLoan(ctx context.Context, principalID, offerID string, amount int64, destination string) error
}

// Scheduler runs fn once after d. Injected so tests assert the delay
// without sleeping; production wiring uses time.AfterFunc.
type Scheduler func(d time.Duration, fn func())

// Snapshot is the externally visible workflow state, recomputed on read.
type Snapshot struct {
	State           string                      `json:"state"`
	Draft           domain.LoanApplicationDraft `json:"draft"`
	Gate            gate.Decision               `json:"gate"`
	ApprovedOwner   string                      `json:"approvedOwner,omitempty"`
	ApprovedAccount string                      `json:"approvedAccount,omitempty"`
	FailureMessage  string                      `json:"failureMessage,omitempty"`
	RedirectTo      string                      `json:"redirectTo,omitempty"`
}

// Workflow owns one loan application attempt.
type Workflow struct {
	mu       sync.Mutex
	session  *session.Store
	engine   *verify.Engine
	ledger   LedgerClient
	logger   *slog.Logger
	schedule Scheduler

	offers   []domain.LoanOffer
	selected *domain.LoanOffer
	draft    domain.LoanApplicationDraft

	submitting      bool
	approvedOwner   string
	approvedAccount string
	failureMessage  string
	redirectTo      string
}

// NewWorkflow wires the workflow to its collaborators. A nil scheduler
// defaults to time.AfterFunc.
func NewWorkflow(sess *session.Store, engine *verify.Engine, ledger LedgerClient, logger *slog.Logger, schedule Scheduler) *Workflow {
	if schedule == nil {
		schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	w := &Workflow{
		session:  sess,
		engine:   engine,
		ledger:   ledger,
		logger:   logger,
		schedule: schedule,
	}
	// A changed verification outcome invalidates a previous failure display;
	// the gate itself is recomputed on every read.
	engine.Subscribe(func(verify.Result) {
		w.mu.Lock()
		w.failureMessage = ""
		w.mu.Unlock()
	})
	return w
}

// LoadOffers fetches the loan catalog once; later calls reuse it.
func (w *Workflow) LoadOffers(ctx context.Context) ([]domain.LoanOffer, error) {
	w.mu.Lock()
	if len(w.offers) > 0 {
		offers := w.offers
		w.mu.Unlock()
		return offers, nil
	}
	w.mu.Unlock()

	offers, err := w.ledger.ListLoanOffers(ctx)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.offers = offers
	w.mu.Unlock()
	return offers, nil
}

// SelectOffer moves from SelectingOffer to DraftingAmount. Amount and
// destination entered so far survive switching offers; the new offer's
// bound applies on the next gate read.
func (w *Workflow) SelectOffer(offerID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.offers {
		if w.offers[i].ID == offerID {
			offer := w.offers[i]
			w.selected = &offer
			w.draft.OfferID = offer.ID
			w.failureMessage = ""
			return nil
		}
	}
	return domain.Validationf("offerId", "unknown loan offer %q", offerID)
}

// SetAmount records the requested amount; bounds apply at the gate.
func (w *Workflow) SetAmount(amount int64) {
	w.mu.Lock()
	w.draft.Amount = amount
	w.failureMessage = ""
	w.mu.Unlock()
}

// SetDestination records the destination account text and routes it through
// the verification engine, which decides whether a lookup is triggered.
func (w *Workflow) SetDestination(ctx context.Context, text string) {
	w.mu.Lock()
	w.draft.DestinationAccountNumber = text
	w.failureMessage = ""
	w.mu.Unlock()

	// Outside the workflow lock: the engine notifies subscribers.
	w.engine.OnInputChanged(ctx, text)
}

// Submit sends the draft to the ledger service. It requires ReadyToSubmit:
// an authenticated principal at this moment, a verified destination, and an
// in-bounds amount. Anything less is rejected locally without a call.
func (w *Workflow) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return ErrSubmitInProgress
	}

	p := w.session.Current()
	if p == nil {
		w.mu.Unlock()
		return domain.ErrUnauthenticated
	}
	if w.selected == nil {
		w.mu.Unlock()
		return domain.Validationf("offerId", "select a loan offer first")
	}

	result := w.engine.CurrentResult()
	if !result.Verified() || result.AccountNumber != w.draft.DestinationAccountNumber {
		w.mu.Unlock()
		return domain.ErrDestinationNotVerified
	}
	if d := gate.ForLoan(p, result, w.draft.Amount, w.selected.MaxAmount); !d.Enabled {
		w.mu.Unlock()
		return domain.Validationf("amount", "%s", d.Reason)
	}

	w.submitting = true
	draft := w.draft
	offerID := w.selected.ID
	owner := result.OwnerName
	w.mu.Unlock()

	err := w.ledger.ApplyForLoan(ctx, p.ID, offerID, draft.Amount, draft.DestinationAccountNumber)

	w.mu.Lock()
	w.submitting = false
	if err != nil {
		// Draft stays intact for retry.
		w.failureMessage = failureMessage(err)
		w.mu.Unlock()
		w.logger.Warn("loan application failed", "offer", offerID, "error", err)
		return err
	}

	w.approvedOwner = owner
	w.approvedAccount = draft.DestinationAccountNumber
	w.draft = domain.LoanApplicationDraft{}
	w.selected = nil
	w.mu.Unlock()

	w.logger.Info("loan approved", "offer", offerID, "amount", draft.Amount, "destination", draft.DestinationAccountNumber)
	w.schedule(RedirectDelay, func() {
		w.mu.Lock()
		w.redirectTo = "/wallet"
		w.mu.Unlock()
	})
	return nil
}

// Reset destroys the draft and display state, e.g. on navigation away.
func (w *Workflow) Reset(ctx context.Context) {
	w.mu.Lock()
	w.selected = nil
	w.draft = domain.LoanApplicationDraft{}
	w.approvedOwner = ""
	w.approvedAccount = ""
	w.failureMessage = ""
	w.redirectTo = ""
	w.mu.Unlock()

	w.engine.OnInputChanged(ctx, "")
}

// State derives the machine position from current inputs.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked(w.engine.CurrentResult())
}

func (w *Workflow) stateLocked(result verify.Result) State {
	switch {
	case w.approvedOwner != "":
		return StateApproved
	case w.submitting:
		return StateSubmitting
	case w.failureMessage != "":
		return StateFailed
	case w.selected == nil:
		return StateSelectingOffer
	}

	p := w.session.Current()
	if gate.ForLoan(p, result, w.draft.Amount, w.selected.MaxAmount).Enabled {
		return StateReadyToSubmit
	}
	if result.State == verify.StatePending {
		return StateAwaitingVerification
	}
	return StateDraftingAmount
}

// Gate recomputes the enablement decision for the current draft.
func (w *Workflow) Gate() gate.Decision {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.selected == nil {
		return gate.Decision{Reason: "no loan offer selected"}
	}
	return gate.ForLoan(w.session.Current(), w.engine.CurrentResult(), w.draft.Amount, w.selected.MaxAmount)
}

// Status reports the full externally visible state.
func (w *Workflow) Status() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := w.engine.CurrentResult()
	var decision gate.Decision
	if w.selected != nil {
		decision = gate.ForLoan(w.session.Current(), result, w.draft.Amount, w.selected.MaxAmount)
	} else {
		decision = gate.Decision{Reason: "no loan offer selected"}
	}

	return Snapshot{
		State:           w.stateLocked(result).String(),
		Draft:           w.draft,
		Gate:            decision,
		ApprovedOwner:   w.approvedOwner,
		ApprovedAccount: w.approvedAccount,
		FailureMessage:  w.failureMessage,
		RedirectTo:      w.redirectTo,
	}
}

func failureMessage(err error) string {
	var rerr *domain.RemoteError
	if errors.As(err, &rerr) {
		return rerr.Message
	}
	return "application failed, please try again"
}
