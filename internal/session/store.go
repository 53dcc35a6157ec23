/**
 * @description
 * This package owns the gateway's session state: the single current
 * Principal and the advisory last-known wallet snapshot, both persisted
 * across process restarts through a pluggable Persister.
 *
 * Key invariants:
 * - At most one Principal is current at a time; absence means
 *   unauthenticated.
 * - Login replaces the stored principal in place (re-login with an updated
 *   principal, e.g. after the verified flag flips, does not create a new
 *   session).
 * - Every action gated on authentication reads Current() at the moment of
 *   the action, so a concurrent logout correctly blocks an in-flight
 *   submission.
 * - Persisted state is advisory: a malformed or absent snapshot silently
 *   restores to "no session", never an error.
 */

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/swiftlend/wallet-gateway/internal/domain"
)

// ErrNotFound is returned by persisters when no state has been saved yet.
var ErrNotFound = errors.New("no persisted state")

// Persister stores the session principal and the advisory wallet snapshot.
// Implementations must treat both records independently.
type Persister interface {
	SavePrincipal(ctx context.Context, p domain.Principal) error
	LoadPrincipal(ctx context.Context) (domain.Principal, error)
	ClearPrincipal(ctx context.Context) error

	SaveWalletSnapshot(ctx context.Context, w domain.Wallet) error
	LoadWalletSnapshot(ctx context.Context) (domain.Wallet, error)
	ClearWalletSnapshot(ctx context.Context) error
}

// Store holds the current principal. It is the single writer of session
// state; all workflows read through it.
type Store struct {
	mu        sync.Mutex
	current   *domain.Principal
	persister Persister
	logger    *slog.Logger
}

// NewStore creates a session store backed by the given persister.
func NewStore(persister Persister, logger *slog.Logger) *Store {
	return &Store{persister: persister, logger: logger}
}

// Restore loads a previously persisted principal, if any. Absent or
// malformed state is treated as "no session" without error.
func (s *Store) Restore(ctx context.Context) {
	p, err := s.persister.LoadPrincipal(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Debug("ignoring unreadable persisted session", "error", err)
		}
		return
	}

	s.mu.Lock()
	s.current = &p
	s.mu.Unlock()
	s.logger.Info("session restored", "principal", p.ID)
}

// Login sets the current principal and persists it, replacing any previous
// value in place.
func (s *Store) Login(ctx context.Context, p domain.Principal) error {
	s.mu.Lock()
	s.current = &p
	s.mu.Unlock()

	if err := s.persister.SavePrincipal(ctx, p); err != nil {
		return err
	}
	return nil
}

// Logout clears the current principal and all persisted state, including
// the wallet snapshot.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.persister.ClearPrincipal(ctx); err != nil {
		return err
	}
	if err := s.persister.ClearWalletSnapshot(ctx); err != nil {
		return err
	}
	return nil
}

// Current returns a copy of the current principal, or nil when
// unauthenticated. Pure read, no side effects.
func (s *Store) Current() *domain.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}
