package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/internal/infrastructure/camera"
	"kyc-wallet.backend/internal/infrastructure/imaging"
	"kyc-wallet.backend/pkg/logger"
)

// ArtifactSink receives a committed artifact for a session slot.
type ArtifactSink func(ctx context.Context, slot entities.CaptureSlot, artifact *entities.Artifact) error

// CaptureStage drives one logical capture through
// IDLE -> PREVIEWING -> CAPTURED -> COMMITTED.
type CaptureStage struct {
	slot     entities.CaptureSlot
	resource *camera.Resource
	sink     ArtifactSink
	now      func() time.Time

	mu            sync.Mutex
	state         entities.CaptureState
	facing        entities.Facing
	handle        *camera.Handle
	artifact      *entities.Artifact
	lastErr       error
	cancelAcquire context.CancelFunc
	generation    uint64
}

// NewCaptureStage creates an idle stage for slot
func NewCaptureStage(slot entities.CaptureSlot, resource *camera.Resource, sink ArtifactSink) *CaptureStage {
	return &CaptureStage{
		slot:     slot,
		resource: resource,
		sink:     sink,
		now:      time.Now,
		state:    entities.CaptureIdle,
		facing:   slot.DefaultFacing(),
	}
}

// Slot returns the session slot the stage fills
func (s *CaptureStage) Slot() entities.CaptureSlot { return s.slot }

// State returns the current lifecycle state
func (s *CaptureStage) State() entities.CaptureState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the stage-local error from the last failed operation
func (s *CaptureStage) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Status returns a read-only view of the stage
func (s *CaptureStage) Status() entities.StageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := entities.StageStatus{
		Slot:     s.slot,
		State:    s.state,
		Starting: s.cancelAcquire != nil,
		Facing:   s.facing,
		Artifact: s.artifact,
	}
	if s.handle != nil {
		status.TorchSupported = s.handle.TorchSupported()
		status.TorchOn = s.handle.TorchOn()
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

// Start acquires the camera for facing and enters PREVIEWING. On failure the
// stage stays IDLE and the error is kept as the stage-local error.
func (s *CaptureStage) Start(ctx context.Context, facing entities.Facing) error {
	if facing == "" {
		facing = s.slot.DefaultFacing()
	}
	return s.acquire(ctx, facing)
}

func (s *CaptureStage) acquire(ctx context.Context, facing entities.Facing) error {
	s.mu.Lock()
	if s.cancelAcquire != nil || s.state == entities.CapturePreviewing || s.state == entities.CaptureCaptured {
		s.mu.Unlock()
		return fmt.Errorf("start %s in state %s: %w", s.slot, s.state, domainerrors.ErrInvalidCaptureState)
	}
	acqCtx, cancel := context.WithCancel(ctx)
	s.cancelAcquire = cancel
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	h, err := s.resource.Acquire(acqCtx, facing)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// Cancel ran while the acquire was pending
		if h != nil {
			h.Release()
		}
		return fmt.Errorf("start %s: %w", s.slot, domainerrors.ErrCaptureCancelled)
	}
	s.cancelAcquire = nil

	if err != nil {
		s.state = entities.CaptureIdle
		s.lastErr = err
		logger.Warn(ctx, "Capture stage could not acquire camera",
			zap.String("slot", string(s.slot)),
			zap.String("facing", string(facing)),
			zap.Error(err),
		)
		return err
	}

	s.handle = h
	s.facing = facing
	s.artifact = nil
	s.lastErr = nil
	s.state = entities.CapturePreviewing
	return nil
}

// Snapshot samples a still and enters CAPTURED. A released lease forces the
// stage back to IDLE.
func (s *CaptureStage) Snapshot(ctx context.Context) (*entities.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != entities.CapturePreviewing || s.handle == nil {
		return nil, fmt.Errorf("snapshot %s in state %s: %w", s.slot, s.state, domainerrors.ErrInvalidCaptureState)
	}

	frame, err := s.handle.Snapshot()
	if errors.Is(err, domainerrors.ErrResourceReleased) {
		logger.Warn(ctx, "Snapshot after camera release, resetting stage", zap.String("slot", string(s.slot)))
		s.handle = nil
		s.state = entities.CaptureIdle
		s.lastErr = err
		return nil, err
	}
	if err != nil {
		s.lastErr = err
		return nil, err
	}

	artifact, err := imaging.FromFrame(frame, s.facing, s.now())
	if err != nil {
		s.lastErr = err
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	s.artifact = artifact
	s.lastErr = nil
	s.state = entities.CaptureCaptured
	return artifact, nil
}

// Retake discards the snapshot and returns to PREVIEWING, re-acquiring the
// camera when the lease was lost.
func (s *CaptureStage) Retake(ctx context.Context) error {
	s.mu.Lock()
	if s.state != entities.CaptureCaptured {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("retake %s in state %s: %w", s.slot, state, domainerrors.ErrInvalidCaptureState)
	}
	s.artifact = nil
	if s.handle != nil && !s.handle.Released() {
		s.state = entities.CapturePreviewing
		s.mu.Unlock()
		return nil
	}
	s.handle = nil
	s.state = entities.CaptureIdle
	facing := s.facing
	s.mu.Unlock()

	return s.acquire(ctx, facing)
}

// Commit hands the snapshot to the session slot and releases the lease.
func (s *CaptureStage) Commit(ctx context.Context) (*entities.Artifact, error) {
	artifact, h, err := s.commit(ctx)
	if h != nil {
		h.Release()
	}
	return artifact, err
}

// commit hands the artifact to the sink and returns the still-live lease to
// the caller, who must release or pass it on.
func (s *CaptureStage) commit(ctx context.Context) (*entities.Artifact, *camera.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != entities.CaptureCaptured || s.artifact == nil {
		return nil, nil, fmt.Errorf("commit %s in state %s: %w", s.slot, s.state, domainerrors.ErrInvalidCaptureState)
	}
	if err := s.sink(ctx, s.slot, s.artifact); err != nil {
		s.lastErr = err
		return nil, nil, err
	}

	artifact := s.artifact
	h := s.handle
	s.artifact = nil
	s.handle = nil
	s.lastErr = nil
	s.state = entities.CaptureCommitted
	return artifact, h, nil
}

// CommitUpload fills the slot with an uploaded artifact instead of a camera
// capture, releasing any lease the stage holds.
func (s *CaptureStage) CommitUpload(ctx context.Context, artifact *entities.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelAcquire != nil {
		return fmt.Errorf("upload %s while camera is starting: %w", s.slot, domainerrors.ErrInvalidCaptureState)
	}
	if err := s.sink(ctx, s.slot, artifact); err != nil {
		s.lastErr = err
		return err
	}
	s.releaseLocked()
	s.artifact = nil
	s.lastErr = nil
	s.state = entities.CaptureCommitted
	return nil
}

// adopt takes over a live lease from a previous stage. It succeeds only
// when the stage is idle and the lease already has the slot's facing.
func (s *CaptureStage) adopt(h *camera.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != entities.CaptureIdle || s.cancelAcquire != nil || s.handle != nil {
		return false
	}
	if h.Released() || h.Facing() != s.slot.DefaultFacing() {
		return false
	}
	s.handle = h
	s.facing = h.Facing()
	s.lastErr = nil
	s.state = entities.CapturePreviewing
	return true
}

// SetTorch toggles the torch while previewing. ErrCapabilityUnsupported is a
// signal, not a stage failure.
func (s *CaptureStage) SetTorch(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil || s.state != entities.CapturePreviewing {
		return fmt.Errorf("torch %s in state %s: %w", s.slot, s.state, domainerrors.ErrInvalidCaptureState)
	}
	err := s.handle.SetTorch(on)
	switch {
	case errors.Is(err, domainerrors.ErrCapabilityUnsupported):
		logger.Debug(ctx, "Torch not supported", zap.String("slot", string(s.slot)))
	case errors.Is(err, domainerrors.ErrResourceReleased):
		s.handle = nil
		s.state = entities.CaptureIdle
		s.lastErr = err
	}
	return err
}

// Cancel aborts a pending acquire, drops any uncommitted snapshot and
// releases the lease. It is safe to call in any state.
func (s *CaptureStage) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelAcquire != nil {
		s.cancelAcquire()
		s.cancelAcquire = nil
		s.generation++
	}
	s.releaseLocked()
	s.artifact = nil
	if s.state != entities.CaptureCommitted {
		s.state = entities.CaptureIdle
	}
}

func (s *CaptureStage) releaseLocked() {
	if s.handle != nil {
		s.handle.Release()
		s.handle = nil
	}
}
