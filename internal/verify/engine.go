/**
 * @description
 * This package implements the destination-account verification engine: given
 * the account-number text the user is typing, it resolves the account against
 * the ledger service without ever exposing a stale result for a superseded
 * query.
 *
 * Ordering model:
 * - Every issued lookup carries a monotonically increasing sequence number.
 * - A response mutates the visible result only if its sequence number still
 *   equals the highest issued one at arrival time; otherwise it is dropped
 *   silently. The result of the most recently issued request always wins,
 *   regardless of completion order.
 * - Cancellation is logical: clearing or editing the field bumps the
 *   sequence number, so an in-flight lookup is allowed to complete and its
 *   result is inert. No forced I/O abort is needed.
 */

package verify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/swiftlend/wallet-gateway/internal/domain"
)

// AccountNumberLength is the system's fixed account-number length. Reaching
// exactly this length triggers verification automatically.
const AccountNumberLength = 10

// State is the visible verification state.
type State int

const (
	StateIdle State = iota
	StatePending
	StateVerified
	StateUnverified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateVerified:
		return "verified"
	case StateUnverified:
		return "unverified"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the latest applied verification outcome.
type Result struct {
	Seq           uint64 `json:"-"`
	State         State  `json:"-"`
	AccountNumber string `json:"accountNumber,omitempty"`
	OwnerName     string `json:"ownerName,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// Verified reports whether the result gates a transfer open.
func (r Result) Verified() bool { return r.State == StateVerified }

// AccountLookup is the slice of the ledger client the engine depends on.
type AccountLookup interface {
	LookupAccount(ctx context.Context, accountNumber string) (domain.AccountLookupResult, error)
}

// Engine owns request-sequencing state and the single latest result.
type Engine struct {
	mu        sync.Mutex
	lookup    AccountLookup
	logger    *slog.Logger
	seq       uint64
	result    Result
	observers []func(Result)

	// In-flight lookup accounting. Issuance and completion both run under
	// mu, so Verify and Wait stay safe when called from concurrent
	// handlers; settled is closed when pending drops to zero.
	pending int
	settled chan struct{}
}

// NewEngine creates a verification engine backed by the given lookup client.
func NewEngine(lookup AccountLookup, logger *slog.Logger) *Engine {
	return &Engine{lookup: lookup, logger: logger}
}

// Subscribe registers an observer invoked after every applied result change.
// Dropped stale responses never notify.
func (e *Engine) Subscribe(fn func(Result)) {
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// OnInputChanged records the candidate text. Reaching exactly the fixed
// account-number length triggers verification immediately; any other length
// clears a prior result back to Idle and supersedes an in-flight lookup so
// an edit in progress is never shown as verified.
func (e *Engine) OnInputChanged(ctx context.Context, text string) {
	if len(text) == AccountNumberLength {
		_ = e.Verify(ctx, text)
		return
	}

	e.mu.Lock()
	e.seq++
	r := Result{Seq: e.seq, State: StateIdle}
	e.result = r
	observers := append([]func(Result){}, e.observers...)
	e.mu.Unlock()

	notify(observers, r)
}

// Verify issues a lookup for the given account number. Strings shorter than
// the fixed length are rejected locally without a network call. The lookup
// runs asynchronously; use Wait or Subscribe to observe completion.
func (e *Engine) Verify(ctx context.Context, accountNumber string) error {
	if len(accountNumber) < AccountNumberLength {
		return domain.Validationf("accountNumber", "must be %d digits", AccountNumberLength)
	}

	e.mu.Lock()
	e.seq++
	seq := e.seq
	r := Result{Seq: seq, State: StatePending, AccountNumber: accountNumber}
	e.result = r
	e.pending++
	if e.pending == 1 {
		e.settled = make(chan struct{})
	}
	observers := append([]func(Result){}, e.observers...)
	e.mu.Unlock()

	notify(observers, r)

	go func() {
		defer e.lookupDone()
		res, err := e.lookup.LookupAccount(ctx, accountNumber)
		e.apply(seq, accountNumber, res, err)
	}()
	return nil
}

func (e *Engine) lookupDone() {
	e.mu.Lock()
	e.pending--
	if e.pending == 0 {
		close(e.settled)
	}
	e.mu.Unlock()
}

// CurrentResult returns the latest applied result. Pure read.
func (e *Engine) CurrentResult() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Wait blocks until every issued lookup has completed (applied or
// discarded), including lookups issued concurrently while waiting. Used by
// synchronous callers and tests.
func (e *Engine) Wait() {
	for {
		e.mu.Lock()
		if e.pending == 0 {
			e.mu.Unlock()
			return
		}
		settled := e.settled
		e.mu.Unlock()
		<-settled
	}
}

func (e *Engine) apply(seq uint64, accountNumber string, res domain.AccountLookupResult, err error) {
	e.mu.Lock()
	if seq != e.seq {
		// A newer request was issued while this one was in flight.
		e.mu.Unlock()
		e.logger.Debug("discarding stale account lookup response",
			"seq", seq, "account", accountNumber)
		return
	}

	var r Result
	switch {
	case err != nil:
		r = Result{Seq: seq, State: StateFailed, AccountNumber: accountNumber, Reason: err.Error()}
	case res.Valid:
		r = Result{Seq: seq, State: StateVerified, AccountNumber: accountNumber, OwnerName: res.OwnerName}
	default:
		r = Result{Seq: seq, State: StateUnverified, AccountNumber: accountNumber}
	}
	e.result = r
	observers := append([]func(Result){}, e.observers...)
	e.mu.Unlock()

	notify(observers, r)
}

func notify(observers []func(Result), r Result) {
	for _, fn := range observers {
		fn(r)
	}
}
