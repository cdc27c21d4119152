package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/internal/domain/repositories"
)

// SessionRepository keeps live onboarding sessions in process memory.
// Session methods are never called while mu is held.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]repositories.Session
	wallets  map[string]uuid.UUID // reserved wallet ID -> owning session
}

// NewSessionRepository creates a new session repository
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[uuid.UUID]repositories.Session),
		wallets:  make(map[string]uuid.UUID),
	}
}

// Save stores or replaces a session
func (r *SessionRepository) Save(ctx context.Context, session repositories.Session) error {
	if session == nil || session.SessionID() == uuid.Nil {
		return domainerrors.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.SessionID()] = session
	return nil
}

// GetByID gets a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (repositories.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return session, nil
}

// ReserveWalletID claims walletID for sessionID. It fails with ErrAlreadyExists
// when another session holds the ID and is a no-op for the current holder.
func (r *SessionRepository) ReserveWalletID(ctx context.Context, walletID string, sessionID uuid.UUID) error {
	if walletID == "" || sessionID == uuid.Nil {
		return domainerrors.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.wallets[walletID]; ok && owner != sessionID {
		return fmt.Errorf("wallet id %s: %w", walletID, domainerrors.ErrAlreadyExists)
	}
	r.wallets[walletID] = sessionID
	return nil
}

// GetByWalletID finds the session owning a wallet. More than one session
// reporting the same wallet fails with ErrAlreadyExists.
func (r *SessionRepository) GetByWalletID(ctx context.Context, walletID string) (repositories.Session, error) {
	if walletID == "" {
		return nil, domainerrors.ErrNotFound
	}

	var match repositories.Session
	for _, session := range r.snapshot() {
		if session.WalletID() != walletID {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("wallet id %s held by sessions %s and %s: %w",
				walletID, match.SessionID(), session.SessionID(), domainerrors.ErrAlreadyExists)
		}
		match = session
	}
	if match == nil {
		return nil, domainerrors.ErrNotFound
	}
	return match, nil
}

// Delete removes a session
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return domainerrors.ErrNotFound
	}
	delete(r.sessions, id)
	for walletID, owner := range r.wallets {
		if owner == id {
			delete(r.wallets, walletID)
		}
	}
	return nil
}

// ListIdle returns sessions idle since before cutoff, oldest first
func (r *SessionRepository) ListIdle(ctx context.Context, cutoff time.Time) ([]repositories.Session, error) {
	var idle []repositories.Session
	for _, session := range r.snapshot() {
		if session.LastActivity().Before(cutoff) {
			idle = append(idle, session)
		}
	}
	sort.Slice(idle, func(i, j int) bool {
		return idle[i].LastActivity().Before(idle[j].LastActivity())
	})
	return idle, nil
}

func (r *SessionRepository) snapshot() []repositories.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repositories.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		out = append(out, session)
	}
	return out
}

// Count returns the number of live sessions
func (r *SessionRepository) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
