package scan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/swiftlend/wallet-gateway/internal/domain"
	"github.com/swiftlend/wallet-gateway/internal/session"
)

type submitStub struct {
	mu       sync.Mutex
	accepted bool
	err      error
	gate     chan struct{}
	calls    int
}

func (s *submitStub) SubmitVerificationScan(context.Context, string) (bool, error) {
	s.mu.Lock()
	s.calls++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted, s.err
}

func (s *submitStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newRunner(t *testing.T, stub *submitStub, loggedIn bool) (*Runner, *session.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	persister, err := session.NewFilePersister(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilePersister: %v", err)
	}
	sess := session.NewStore(persister, logger)
	if loggedIn {
		if err := sess.Login(context.Background(), domain.Principal{ID: "p-1", FullName: "Jane Doe"}); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}
	return NewRunner(sess, stub, logger, time.Microsecond), sess
}

func TestRun_EmitsFullProgressAndVerifiesPrincipal(t *testing.T) {
	stub := &submitStub{accepted: true}
	runner, sess := newRunner(t, stub, true)

	var steps []int
	err := runner.Run(context.Background(), func(percent int) {
		steps = append(steps, percent)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(steps) != Steps {
		t.Fatalf("expected %d progress steps, got %d", Steps, len(steps))
	}
	if steps[0] != 1 || steps[len(steps)-1] != Steps {
		t.Fatalf("expected monotonic progress 1..%d, got first=%d last=%d", Steps, steps[0], steps[len(steps)-1])
	}
	if stub.callCount() != 1 {
		t.Fatalf("expected a single submission, got %d", stub.callCount())
	}

	p := sess.Current()
	if p == nil || !p.Verified {
		t.Fatalf("expected verified principal, got %+v", p)
	}
	if p.FullName != "Jane Doe" {
		t.Fatalf("re-login must keep the principal's identity, got %+v", p)
	}
}

func TestRun_RequiresAuthentication(t *testing.T) {
	stub := &submitStub{accepted: true}
	runner, _ := newRunner(t, stub, false)

	if err := runner.Run(context.Background(), nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if stub.callCount() != 0 {
		t.Fatal("no submission may be issued without a session")
	}
}

func TestRun_RejectionLeavesPrincipalUnverified(t *testing.T) {
	stub := &submitStub{accepted: false}
	runner, sess := newRunner(t, stub, true)

	err := runner.Run(context.Background(), nil)
	var rerr *domain.RemoteError
	if !errors.As(err, &rerr) || rerr.Code != domain.CodeVerificationFailed {
		t.Fatalf("expected verification_failed, got %v", err)
	}
	if p := sess.Current(); p == nil || p.Verified {
		t.Fatalf("rejection must not verify the principal, got %+v", p)
	}
}

func TestRun_TransportFailureSurfaced(t *testing.T) {
	stub := &submitStub{err: &domain.TransportError{Op: "submitVerificationScan", Err: errors.New("connection refused")}}
	runner, sess := newRunner(t, stub, true)

	err := runner.Run(context.Background(), nil)
	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if p := sess.Current(); p == nil || p.Verified {
		t.Fatalf("failure must not verify the principal, got %+v", p)
	}
}

func TestRun_OverlappingScansRejected(t *testing.T) {
	stub := &submitStub{accepted: true, gate: make(chan struct{})}
	runner, _ := newRunner(t, stub, true)

	firstDone := make(chan error, 1)
	go func() { firstDone <- runner.Run(context.Background(), nil) }()

	// Wait for the first scan to finish its sequence and block in submission.
	for stub.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := runner.Run(context.Background(), nil); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("expected ErrScanInProgress, got %v", err)
	}

	close(stub.gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if stub.callCount() != 1 {
		t.Fatalf("expected a single submission, got %d", stub.callCount())
	}
}

func TestRun_CancelledContextStopsBeforeSubmission(t *testing.T) {
	stub := &submitStub{accepted: true}
	runner, sess := newRunner(t, stub, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runner.Run(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stub.callCount() != 0 {
		t.Fatal("a cancelled scan must not submit")
	}
	if p := sess.Current(); p == nil || p.Verified {
		t.Fatalf("a cancelled scan must not verify, got %+v", p)
	}
}
