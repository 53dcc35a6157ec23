package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/swiftlend/wallet-gateway/internal/domain"
)

// blockingLookup hands each issued call to the test, which releases the
// response whenever it chooses. This lets tests deliver responses in any
// completion order.
type blockingLookup struct {
	calls chan *lookupCall
}

type lookupCall struct {
	accountNumber string
	release       chan lookupReply
}

type lookupReply struct {
	res domain.AccountLookupResult
	err error
}

func newBlockingLookup() *blockingLookup {
	return &blockingLookup{calls: make(chan *lookupCall, 16)}
}

func (b *blockingLookup) LookupAccount(_ context.Context, accountNumber string) (domain.AccountLookupResult, error) {
	call := &lookupCall{accountNumber: accountNumber, release: make(chan lookupReply)}
	b.calls <- call
	reply := <-call.release
	return reply.res, reply.err
}

// countingLookup answers immediately and counts calls.
type countingLookup struct {
	mu    sync.Mutex
	count int
	res   domain.AccountLookupResult
	err   error
}

func (c *countingLookup) LookupAccount(context.Context, string) (domain.AccountLookupResult, error) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return c.res, c.err
}

func (c *countingLookup) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func newTestEngine(lookup AccountLookup) *Engine {
	return NewEngine(lookup, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestVerify_LastIssuedWinsWhenResponsesArriveOutOfOrder(t *testing.T) {
	lookup := newBlockingLookup()
	engine := newTestEngine(lookup)
	ctx := context.Background()

	if err := engine.Verify(ctx, "1111111111"); err != nil {
		t.Fatalf("Verify seq 1: %v", err)
	}
	first := <-lookup.calls

	if err := engine.Verify(ctx, "2222222222"); err != nil {
		t.Fatalf("Verify seq 2: %v", err)
	}
	second := <-lookup.calls

	// Deliver the later request's response first...
	second.release <- lookupReply{res: domain.AccountLookupResult{Valid: true, OwnerName: "Alice"}}
	// ...then let the superseded one complete.
	first.release <- lookupReply{res: domain.AccountLookupResult{Valid: true, OwnerName: "Bob"}}
	engine.Wait()

	got := engine.CurrentResult()
	if got.State != StateVerified || got.OwnerName != "Alice" {
		t.Fatalf("expected Verified(Alice) to survive the stale response, got %v owner=%q", got.State, got.OwnerName)
	}
}

func TestVerify_ArbitraryPermutation_FinalResultIsLastIssued(t *testing.T) {
	lookup := newBlockingLookup()
	engine := newTestEngine(lookup)
	ctx := context.Background()

	const n = 5
	calls := make([]*lookupCall, 0, n)
	for i := 1; i <= n; i++ {
		account := fmt.Sprintf("%010d", i)
		if err := engine.Verify(ctx, account); err != nil {
			t.Fatalf("Verify %d: %v", i, err)
		}
		calls = append(calls, <-lookup.calls)
	}

	// Deliver every response in reverse issuance order.
	for i := n - 1; i >= 0; i-- {
		calls[i].release <- lookupReply{res: domain.AccountLookupResult{
			Valid:     true,
			OwnerName: fmt.Sprintf("owner-%d", i+1),
		}}
	}
	engine.Wait()

	got := engine.CurrentResult()
	if got.OwnerName != fmt.Sprintf("owner-%d", n) {
		t.Fatalf("expected the last issued request's owner, got %q", got.OwnerName)
	}
	if got.AccountNumber != fmt.Sprintf("%010d", n) {
		t.Fatalf("expected the last issued account number, got %q", got.AccountNumber)
	}
}

func TestVerify_RejectsShortInputWithoutNetworkCall(t *testing.T) {
	lookup := &countingLookup{}
	engine := newTestEngine(lookup)

	err := engine.Verify(context.Background(), "123456789")

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	engine.Wait()
	if lookup.calls() != 0 {
		t.Fatalf("expected no lookup for a 9-character string, got %d calls", lookup.calls())
	}
}

func TestOnInputChanged_TriggersLookupAtExactLength(t *testing.T) {
	lookup := &countingLookup{res: domain.AccountLookupResult{Valid: true, OwnerName: "Jane Doe"}}
	engine := newTestEngine(lookup)
	ctx := context.Background()

	engine.OnInputChanged(ctx, "123456789") // 9 chars: no call
	engine.OnInputChanged(ctx, "1234567890")
	engine.Wait()

	if lookup.calls() != 1 {
		t.Fatalf("expected exactly one lookup, got %d", lookup.calls())
	}
	if got := engine.CurrentResult(); got.State != StateVerified || got.OwnerName != "Jane Doe" {
		t.Fatalf("expected Verified(Jane Doe), got %v owner=%q", got.State, got.OwnerName)
	}
}

func TestOnInputChanged_EditClearsResultAndSupersedesInflight(t *testing.T) {
	lookup := newBlockingLookup()
	engine := newTestEngine(lookup)
	ctx := context.Background()

	engine.OnInputChanged(ctx, "1234567890")
	call := <-lookup.calls

	// The user keeps typing past the fixed length while the lookup is still
	// in flight; the visible state must drop back to Idle now...
	engine.OnInputChanged(ctx, "12345678901")
	if got := engine.CurrentResult(); got.State != StateIdle {
		t.Fatalf("expected Idle after edit, got %v", got.State)
	}

	// ...and the pending response must be discarded harmlessly on arrival.
	call.release <- lookupReply{res: domain.AccountLookupResult{Valid: true, OwnerName: "Stale Owner"}}
	engine.Wait()

	if got := engine.CurrentResult(); got.State != StateIdle || got.OwnerName != "" {
		t.Fatalf("expected superseded response to stay discarded, got %v owner=%q", got.State, got.OwnerName)
	}
}

func TestVerify_IdempotentReVerification(t *testing.T) {
	lookup := &countingLookup{res: domain.AccountLookupResult{Valid: true, OwnerName: "Jane Doe"}}
	engine := newTestEngine(lookup)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := engine.Verify(ctx, "1234567890"); err != nil {
			t.Fatalf("Verify #%d: %v", i+1, err)
		}
		engine.Wait()
		got := engine.CurrentResult()
		if got.State != StateVerified || got.OwnerName != "Jane Doe" {
			t.Fatalf("verification #%d: expected Verified(Jane Doe), got %v owner=%q", i+1, got.State, got.OwnerName)
		}
	}
}

func TestVerify_UnverifiableDestination(t *testing.T) {
	lookup := &countingLookup{res: domain.AccountLookupResult{Valid: false}}
	engine := newTestEngine(lookup)

	if err := engine.Verify(context.Background(), "1234567890"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	engine.Wait()

	if got := engine.CurrentResult(); got.State != StateUnverified {
		t.Fatalf("expected Unverified, got %v", got.State)
	}
}

func TestVerify_TransportFailureIsNotVerified(t *testing.T) {
	lookup := &countingLookup{err: &domain.TransportError{Op: "lookupAccount", Err: errors.New("connection refused")}}
	engine := newTestEngine(lookup)

	if err := engine.Verify(context.Background(), "1234567890"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	engine.Wait()

	got := engine.CurrentResult()
	if got.State != StateFailed || got.Verified() {
		t.Fatalf("expected Failed and not verified, got %v", got.State)
	}
	if got.Reason == "" {
		t.Fatal("expected a failure reason for display")
	}
}

func TestSubscribe_ObserversSeeAppliedResultsOnly(t *testing.T) {
	lookup := newBlockingLookup()
	engine := newTestEngine(lookup)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []State
	engine.Subscribe(func(r Result) {
		mu.Lock()
		seen = append(seen, r.State)
		mu.Unlock()
	})

	if err := engine.Verify(ctx, "1111111111"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	stale := <-lookup.calls
	if err := engine.Verify(ctx, "2222222222"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	current := <-lookup.calls

	current.release <- lookupReply{res: domain.AccountLookupResult{Valid: true, OwnerName: "Alice"}}
	stale.release <- lookupReply{res: domain.AccountLookupResult{Valid: true, OwnerName: "Bob"}}
	engine.Wait()

	mu.Lock()
	defer mu.Unlock()
	// Pending, Pending, Verified; the discarded stale response must not
	// have produced a fourth notification.
	if len(seen) != 3 {
		t.Fatalf("expected 3 notifications, got %d (%v)", len(seen), seen)
	}
	if seen[2] != StateVerified {
		t.Fatalf("expected final notification to be Verified, got %v", seen[2])
	}
}

// Verify and Wait may run concurrently from different request handlers: a
// new lookup issued while another caller is blocked in Wait must neither
// panic nor be missed by that Wait.
func TestWait_SafeWithConcurrentVerifies(t *testing.T) {
	lookup := &countingLookup{res: domain.AccountLookupResult{Valid: true, OwnerName: "Alice"}}
	engine := newTestEngine(lookup)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			account := fmt.Sprintf("%010d", n)
			if err := engine.Verify(ctx, account); err != nil {
				t.Errorf("Verify %s: %v", account, err)
				return
			}
			engine.Wait()
		}(i)
	}
	wg.Wait()
	engine.Wait()

	if got := engine.CurrentResult(); got.State == StatePending {
		t.Fatalf("expected a settled result after Wait, got %v", got.State)
	}
	if lookup.calls() != 16 {
		t.Fatalf("expected 16 lookups issued, got %d", lookup.calls())
	}
}
