package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is a live onboarding session held by a SessionRepository.
type Session interface {
	SessionID() uuid.UUID
	WalletID() string
	LastActivity() time.Time
	// Close releases every device lease the session holds.
	Close()
}

// SessionRepository tracks live onboarding sessions
type SessionRepository interface {
	Save(ctx context.Context, session Session) error
	GetByID(ctx context.Context, id uuid.UUID) (Session, error)
	GetByWalletID(ctx context.Context, walletID string) (Session, error)
	// ReserveWalletID claims a wallet ID for a session; ErrAlreadyExists when taken.
	ReserveWalletID(ctx context.Context, walletID string, sessionID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListIdle returns sessions whose last activity is before cutoff.
	ListIdle(ctx context.Context, cutoff time.Time) ([]Session, error)
	Count(ctx context.Context) int
}
