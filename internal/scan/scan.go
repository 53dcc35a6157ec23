/**
 * @description
 * Simulated biometric verification scan. The runner drives a fixed 100-step
 * progress sequence on a configurable tick, then submits the result to the
 * ledger service. Only a successful submission flips the principal to
 * verified; the flag changes exclusively through the session store so the
 * persisted session stays consistent.
 *
 * Only one scan may run at a time. Progress is reported through an optional
 * callback so a caller can stream it to a UI.
 */

package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/swiftlend/wallet-gateway/internal/domain"
	"github.com/swiftlend/wallet-gateway/internal/session"
)

// Steps is the number of progress increments a full scan emits.
const Steps = 100

// DefaultTick is the production interval between progress increments.
const DefaultTick = 50 * time.Millisecond

// ErrScanInProgress is returned when a scan is started while one is running.
var ErrScanInProgress = errors.New("a verification scan is already running")

// Ledger is the slice of the ledger service the runner needs.
type Ledger interface {
	SubmitVerificationScan(ctx context.Context, principalID string) (bool, error)
}

// Runner drives the scan sequence.
type Runner struct {
	mu      sync.Mutex
	running bool

	session *session.Store
	ledger  Ledger
	logger  *slog.Logger
	tick    time.Duration
}

// NewRunner wires the runner; a non-positive tick falls back to DefaultTick.
func NewRunner(sess *session.Store, ledger Ledger, logger *slog.Logger, tick time.Duration) *Runner {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Runner{
		session: sess,
		ledger:  ledger,
		logger:  logger,
		tick:    tick,
	}
}

// Run blocks through the full progress sequence, submits the result, and on
// acceptance re-logs the principal in with Verified set. onProgress may be
// nil; when set it is called once per step with the percentage so far.
func (r *Runner) Run(ctx context.Context, onProgress func(percent int)) error {
	p := r.session.Current()
	if p == nil {
		return domain.ErrUnauthenticated
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrScanInProgress
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for step := 1; step <= Steps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if onProgress != nil {
			onProgress(step)
		}
	}

	accepted, err := r.ledger.SubmitVerificationScan(ctx, p.ID)
	if err != nil {
		r.logger.Warn("verification submission failed", "principal", p.ID, "error", err)
		return err
	}
	if !accepted {
		return &domain.RemoteError{
			Code:    domain.CodeVerificationFailed,
			Message: "identity verification was not accepted",
		}
	}

	verified := *p
	verified.Verified = true
	if err := r.session.Login(ctx, verified); err != nil {
		return err
	}
	r.logger.Info("identity verified", "principal", p.ID)
	return nil
}
