package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/internal/infrastructure/camera"
	"kyc-wallet.backend/internal/infrastructure/imaging"
	"kyc-wallet.backend/pkg/logger"
)

// WalletIDReserver claims wallet IDs so no two sessions share one
type WalletIDReserver interface {
	ReserveWalletID(ctx context.Context, walletID string, sessionID uuid.UUID) error
}

// SessionOptions configures a KYCSession
type SessionOptions struct {
	FacePolicy     entities.FacePolicy
	Bonus          int64
	Verifier       Verifier
	AcquireTimeout time.Duration
	Now            func() time.Time
	WalletIDs      WalletIDReserver
	NewWalletID    func() string
}

// KYCSession wires one onboarding machine to its ledger, camera and capture
// stages. Leaving a capture step cancels that step's stages.
type KYCSession struct {
	id       uuid.UUID
	machine  *OnboardingMachine
	ledger   *LedgerEngine
	resource *camera.Resource
	now      func() time.Time

	documents *CaptureSequence
	hands     *CaptureSequence
	face      *CaptureStage

	mu           sync.Mutex
	lastActivity time.Time
	closed       bool
}

// NewKYCSession creates a session at CONSENT using device for captures
func NewKYCSession(id uuid.UUID, device camera.Device, opts SessionOptions) *KYCSession {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Verifier == nil {
		opts.Verifier = NewSimulatedVerifier(0)
	}
	if opts.FacePolicy == "" {
		opts.FacePolicy = entities.FaceSkippable
	}
	if opts.Bonus <= 0 {
		opts.Bonus = DefaultOnboardingBonus
	}

	var resourceOpts []camera.Option
	if opts.AcquireTimeout > 0 {
		resourceOpts = append(resourceOpts, camera.WithAcquireTimeout(opts.AcquireTimeout))
	}

	ledgerOpts := []LedgerOption{
		WithLedgerClock(opts.Now),
		WithLedgerIDs(opts.NewWalletID, nil),
	}
	if opts.WalletIDs != nil {
		reserver := opts.WalletIDs
		ledgerOpts = append(ledgerOpts, WithWalletIDReservation(func(ctx context.Context, walletID string) error {
			return reserver.ReserveWalletID(ctx, walletID, id)
		}))
	}

	s := &KYCSession{
		id:           id,
		ledger:       NewLedgerEngine(ledgerOpts...),
		resource:     camera.NewResource(device, resourceOpts...),
		now:          opts.Now,
		lastActivity: opts.Now(),
	}
	s.machine = NewOnboardingMachine(id, s.ledger, opts.Verifier,
		WithFacePolicy(opts.FacePolicy),
		WithOnboardingBonus(opts.Bonus),
		WithMachineClock(opts.Now),
		WithStepListener(s.onStepChange),
	)

	sink := func(ctx context.Context, slot entities.CaptureSlot, artifact *entities.Artifact) error {
		_, err := s.machine.Dispatch(ctx, entities.CompleteCapture(slot, artifact))
		return err
	}
	s.documents = NewCaptureSequence(
		NewCaptureStage(entities.SlotDocumentFront, s.resource, sink),
		NewCaptureStage(entities.SlotDocumentBack, s.resource, sink),
	)
	s.hands = NewCaptureSequence(
		NewCaptureStage(entities.SlotLeftHand, s.resource, sink),
		NewCaptureStage(entities.SlotRightHand, s.resource, sink),
	)
	s.face = NewCaptureStage(entities.SlotFace, s.resource, sink)
	return s
}

func (s *KYCSession) onStepChange(ctx context.Context, from, to entities.Step) {
	if !from.IsCapture() {
		return
	}
	switch from {
	case entities.StepDocumentCapture:
		s.documents.Cancel()
	case entities.StepBiometricCapture:
		s.hands.Cancel()
		s.face.Cancel()
	}
}

// SessionID returns the session identifier
func (s *KYCSession) SessionID() uuid.UUID { return s.id }

// WalletID returns the wallet ID once onboarding completed
func (s *KYCSession) WalletID() string { return s.ledger.WalletID() }

// Machine returns the onboarding machine
func (s *KYCSession) Machine() *OnboardingMachine { return s.machine }

// Ledger returns the session's wallet ledger
func (s *KYCSession) Ledger() *LedgerEngine { return s.ledger }

// LastActivity returns when the session was last used
func (s *KYCSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// touch records activity and fails once the session is closed.
func (s *KYCSession) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domainerrors.ErrSessionClosed
	}
	s.lastActivity = s.now()
	return nil
}

// Close cancels every stage and releases the camera. Extra calls are no-ops.
func (s *KYCSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.documents.Cancel()
	s.hands.Cancel()
	s.face.Cancel()
	s.resource.ReleaseAll()
}

// Closed reports whether Close has run
func (s *KYCSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dispatch forwards an intent to the onboarding machine
func (s *KYCSession) Dispatch(ctx context.Context, intent entities.Intent) (entities.Step, error) {
	if err := s.touch(); err != nil {
		return "", err
	}
	if intent.Type == entities.IntentCompleteCapture {
		return s.machine.CurrentStep(), fmt.Errorf("captures are committed through their stage: %w", domainerrors.ErrInvalidInput)
	}
	return s.machine.Dispatch(logger.WithSession(ctx, s.id.String()), intent)
}

// View returns the session data together with every capture stage status
func (s *KYCSession) View() entities.SessionView {
	view := entities.SessionView{
		OnboardingSession: s.machine.Session(),
		FacePolicy:        s.machine.FacePolicy(),
		Balance:           s.ledger.Balance(),
	}
	for _, stage := range s.stages() {
		view.Captures = append(view.Captures, stage.Status())
	}
	return view
}

func (s *KYCSession) stages() []*CaptureStage {
	out := s.documents.Stages()
	out = append(out, s.face)
	return append(out, s.hands.Stages()...)
}

// Stage returns the capture stage for slot
func (s *KYCSession) Stage(slot entities.CaptureSlot) (*CaptureStage, error) {
	for _, stage := range s.stages() {
		if stage.Slot() == slot {
			return stage, nil
		}
	}
	return nil, fmt.Errorf("capture slot %q: %w", slot, domainerrors.ErrNotFound)
}

// captureStage resolves slot and checks the session is on the step that owns it.
func (s *KYCSession) captureStage(slot entities.CaptureSlot) (*CaptureStage, error) {
	if err := s.touch(); err != nil {
		return nil, err
	}
	stage, err := s.Stage(slot)
	if err != nil {
		return nil, err
	}
	step, _ := slot.Step()
	if current := s.machine.CurrentStep(); current != step {
		return nil, fmt.Errorf("capture %s at step %s: %w", slot, current, domainerrors.ErrInvalidCaptureState)
	}
	return stage, nil
}

// StartCapture acquires the camera for slot
func (s *KYCSession) StartCapture(ctx context.Context, slot entities.CaptureSlot, facing entities.Facing) (entities.StageStatus, error) {
	stage, err := s.captureStage(slot)
	if err != nil {
		return entities.StageStatus{}, err
	}
	if err := stage.Start(logger.WithSession(ctx, s.id.String()), facing); err != nil {
		return stage.Status(), err
	}

	// A step change between the check and the acquire already ran its
	// cancellation, so the new lease would outlive the step.
	step, _ := slot.Step()
	if current := s.machine.CurrentStep(); current != step {
		stage.Cancel()
		return stage.Status(), fmt.Errorf("capture %s left step %s: %w", slot, current, domainerrors.ErrInvalidCaptureState)
	}
	return stage.Status(), nil
}

// SnapshotCapture takes a still for slot
func (s *KYCSession) SnapshotCapture(ctx context.Context, slot entities.CaptureSlot) (entities.StageStatus, error) {
	stage, err := s.captureStage(slot)
	if err != nil {
		return entities.StageStatus{}, err
	}
	_, err = stage.Snapshot(logger.WithSession(ctx, s.id.String()))
	return stage.Status(), err
}

// RetakeCapture discards the still for slot
func (s *KYCSession) RetakeCapture(ctx context.Context, slot entities.CaptureSlot) (entities.StageStatus, error) {
	stage, err := s.captureStage(slot)
	if err != nil {
		return entities.StageStatus{}, err
	}
	err = stage.Retake(logger.WithSession(ctx, s.id.String()))
	return stage.Status(), err
}

// CommitCapture stores the still for slot in the session
func (s *KYCSession) CommitCapture(ctx context.Context, slot entities.CaptureSlot) (entities.StageStatus, error) {
	stage, err := s.captureStage(slot)
	if err != nil {
		return entities.StageStatus{}, err
	}
	ctx = logger.WithSession(ctx, s.id.String())

	switch {
	case s.documents.contains(slot):
		_, err = s.documents.Commit(ctx, slot)
	case s.hands.contains(slot):
		_, err = s.hands.Commit(ctx, slot)
	default:
		_, err = stage.Commit(ctx)
	}
	return stage.Status(), err
}

// CancelCapture abandons the capture for slot
func (s *KYCSession) CancelCapture(ctx context.Context, slot entities.CaptureSlot) (entities.StageStatus, error) {
	if err := s.touch(); err != nil {
		return entities.StageStatus{}, err
	}
	stage, err := s.Stage(slot)
	if err != nil {
		return entities.StageStatus{}, err
	}
	stage.Cancel()
	return stage.Status(), nil
}

// SetTorch toggles the torch for slot
func (s *KYCSession) SetTorch(ctx context.Context, slot entities.CaptureSlot, on bool) (entities.StageStatus, error) {
	stage, err := s.captureStage(slot)
	if err != nil {
		return entities.StageStatus{}, err
	}
	err = stage.SetTorch(logger.WithSession(ctx, s.id.String()), on)
	return stage.Status(), err
}

// CaptureStatus returns the status of slot
func (s *KYCSession) CaptureStatus(slot entities.CaptureSlot) (entities.StageStatus, error) {
	stage, err := s.Stage(slot)
	if err != nil {
		return entities.StageStatus{}, err
	}
	return stage.Status(), nil
}

// UploadDocument fills a document slot from an uploaded image
func (s *KYCSession) UploadDocument(ctx context.Context, slot entities.CaptureSlot, data []byte) (entities.StageStatus, error) {
	if !s.documents.contains(slot) {
		return entities.StageStatus{}, fmt.Errorf("upload to slot %q: %w", slot, domainerrors.ErrInvalidInput)
	}
	stage, err := s.captureStage(slot)
	if err != nil {
		return entities.StageStatus{}, err
	}

	artifact, err := imaging.FromUpload(data, s.now())
	if err != nil {
		return stage.Status(), fmt.Errorf("%w: %w", domainerrors.ErrInvalidInput, err)
	}
	err = stage.CommitUpload(logger.WithSession(ctx, s.id.String()), artifact)
	return stage.Status(), err
}
