package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/internal/domain/repositories"
	"kyc-wallet.backend/internal/infrastructure/camera"
	"kyc-wallet.backend/pkg/logger"
	"kyc-wallet.backend/pkg/metrics"
	"kyc-wallet.backend/pkg/utils"
)

const DefaultQRSize = 256

// DeviceFactory builds the capture device for a new session
type DeviceFactory func() camera.Device

// WalletView is a page of the wallet transaction history with its summary
type WalletView struct {
	Summary      entities.WalletSummary `json:"summary"`
	CreatedAt    time.Time              `json:"createdAt"`
	Transactions []entities.Transaction `json:"transactions"`
	Pagination   utils.PaginationMeta   `json:"pagination"`
}

// SessionUsecase handles onboarding session business logic
type SessionUsecase struct {
	repo      repositories.SessionRepository
	newDevice DeviceFactory
	opts      SessionOptions
	now       func() time.Time
}

// NewSessionUsecase creates a new session usecase
func NewSessionUsecase(repo repositories.SessionRepository, newDevice DeviceFactory, opts SessionOptions) *SessionUsecase {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.WalletIDs == nil {
		opts.WalletIDs = repo
	}
	return &SessionUsecase{
		repo:      repo,
		newDevice: newDevice,
		opts:      opts,
		now:       now,
	}
}

// CreateSession starts a new onboarding session at CONSENT
func (u *SessionUsecase) CreateSession(ctx context.Context) (*entities.SessionView, error) {
	id := utils.GenerateUUIDv7()
	session := NewKYCSession(id, u.newDevice(), u.opts)
	if err := u.repo.Save(ctx, session); err != nil {
		session.Close()
		return nil, err
	}
	metrics.ActiveSessions.Set(float64(u.repo.Count(ctx)))

	logger.Info(logger.WithSession(ctx, id.String()), "Onboarding session created")
	view := session.View()
	return &view, nil
}

// Session resolves a live session by ID
func (u *SessionUsecase) Session(ctx context.Context, id uuid.UUID) (*KYCSession, error) {
	found, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	session, ok := found.(*KYCSession)
	if !ok {
		return nil, fmt.Errorf("session %s has unexpected type %T", id, found)
	}
	return session, nil
}

// GetSession returns the current view of a session
func (u *SessionUsecase) GetSession(ctx context.Context, id uuid.UUID) (*entities.SessionView, error) {
	session, err := u.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	view := session.View()
	return &view, nil
}

// Dispatch applies a user intent. The session view is returned alongside
// validation errors so callers can render the step with inline messages.
func (u *SessionUsecase) Dispatch(ctx context.Context, id uuid.UUID, intent entities.Intent) (*entities.SessionView, error) {
	session, err := u.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	_, err = session.Dispatch(ctx, intent)
	view := session.View()
	return &view, err
}

// CaptureAction names an operation on a capture stage
type CaptureAction string

const (
	CaptureStart    CaptureAction = "start"
	CaptureSnapshot CaptureAction = "snapshot"
	CaptureRetake   CaptureAction = "retake"
	CaptureCommit   CaptureAction = "commit"
	CaptureCancel   CaptureAction = "cancel"
)

// Capture runs action on the stage for slot
func (u *SessionUsecase) Capture(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, action CaptureAction, facing entities.Facing) (*entities.StageStatus, error) {
	session, err := u.Session(ctx, id)
	if err != nil {
		return nil, err
	}

	var status entities.StageStatus
	switch action {
	case CaptureStart:
		status, err = session.StartCapture(ctx, slot, facing)
	case CaptureSnapshot:
		status, err = session.SnapshotCapture(ctx, slot)
	case CaptureRetake:
		status, err = session.RetakeCapture(ctx, slot)
	case CaptureCommit:
		status, err = session.CommitCapture(ctx, slot)
	case CaptureCancel:
		status, err = session.CancelCapture(ctx, slot)
	default:
		return nil, fmt.Errorf("capture action %q: %w", action, domainerrors.ErrBadRequest)
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// GetCapture returns the status of the stage for slot
func (u *SessionUsecase) GetCapture(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot) (*entities.StageStatus, error) {
	session, err := u.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := session.CaptureStatus(slot)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// SetTorch toggles the torch for the stage of slot
func (u *SessionUsecase) SetTorch(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, on bool) (*entities.StageStatus, error) {
	session, err := u.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := session.SetTorch(ctx, slot, on)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// UploadDocument fills a document side from an uploaded image
func (u *SessionUsecase) UploadDocument(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, data []byte) (*entities.StageStatus, error) {
	session, err := u.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := session.UploadDocument(ctx, slot, data)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// GetWallet returns the wallet summary with one page of transactions, newest first
func (u *SessionUsecase) GetWallet(ctx context.Context, id uuid.UUID, page utils.PaginationParams) (*WalletView, error) {
	session, err := u.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	wallet, err := session.Ledger().Wallet()
	if err != nil {
		return nil, err
	}
	summary, err := session.Ledger().Summary()
	if err != nil {
		return nil, err
	}

	txs, meta := utils.Paginate(wallet.Transactions, page)
	return &WalletView{
		Summary:      *summary,
		CreatedAt:    wallet.CreatedAt,
		Transactions: txs,
		Pagination:   meta,
	}, nil
}

// WalletQR renders the wallet ID as a PNG QR code
func (u *SessionUsecase) WalletQR(ctx context.Context, id uuid.UUID, size int) ([]byte, error) {
	session, err := u.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	walletID := session.WalletID()
	if walletID == "" {
		return nil, domainerrors.ErrWalletNotCreated
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(walletID, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode wallet qr: %w", err)
	}
	return png, nil
}

// ExpireIdle closes and forgets sessions idle for longer than ttl
func (u *SessionUsecase) ExpireIdle(ctx context.Context, ttl time.Duration) (int, error) {
	idle, err := u.repo.ListIdle(ctx, u.now().Add(-ttl))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, session := range idle {
		session.Close()
		if err := u.repo.Delete(ctx, session.SessionID()); err != nil {
			logger.Error(ctx, "Failed to delete expired session",
				zap.String("session_id", session.SessionID().String()),
				zap.Error(err),
			)
			continue
		}
		expired++
	}
	metrics.ActiveSessions.Set(float64(u.repo.Count(ctx)))
	return expired, nil
}
