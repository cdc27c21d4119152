package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/pkg/logger"
	"kyc-wallet.backend/pkg/metrics"
)

// DefaultAcquireTimeout bounds how long Acquire waits for the device.
const DefaultAcquireTimeout = 10 * time.Second

// Resource grants exclusive access to one physical capture device. At most
// one Handle is live at a time; acquiring a new one releases the previous.
type Resource struct {
	device         Device
	acquireTimeout time.Duration

	// acquireMu serializes Open calls; mu guards current and never waits on
	// the device, so Release is never blocked by a pending Acquire.
	acquireMu sync.Mutex
	mu        sync.Mutex
	current   *Handle
}

// Option configures a Resource.
type Option func(*Resource)

// WithAcquireTimeout overrides DefaultAcquireTimeout. Non-positive values
// are ignored.
func WithAcquireTimeout(d time.Duration) Option {
	return func(r *Resource) {
		if d > 0 {
			r.acquireTimeout = d
		}
	}
}

// NewResource creates a Resource over device.
func NewResource(device Device, opts ...Option) *Resource {
	r := &Resource{device: device, acquireTimeout: DefaultAcquireTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type openResult struct {
	stream Stream
	err    error
}

// Acquire opens a stream for facing and returns a live handle. Failures,
// including the acquisition timeout, are reported as ErrDeviceUnavailable;
// cancellation of ctx is reported as ErrCaptureCancelled.
func (r *Resource) Acquire(ctx context.Context, facing entities.Facing) (*Handle, error) {
	if !facing.Valid() {
		return nil, fmt.Errorf("%w: unknown facing %q", domainerrors.ErrInvalidInput, facing)
	}

	r.acquireMu.Lock()
	defer r.acquireMu.Unlock()

	// never hold two device locks
	r.releaseCurrent()

	openCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	done := make(chan openResult, 1)
	go func() {
		s, err := r.device.Open(openCtx, facing)
		done <- openResult{stream: s, err: err}
	}()

	var res openResult
	select {
	case res = <-done:
	case <-openCtx.Done():
		// the driver may still hand us a stream later; close it then
		go func() {
			if late := <-done; late.stream != nil {
				_ = late.stream.Close()
			}
		}()
		return nil, r.acquireFailed(ctx, facing, openCtx.Err())
	}

	if res.err != nil {
		if res.stream != nil {
			_ = res.stream.Close()
		}
		return nil, r.acquireFailed(ctx, facing, res.err)
	}
	if ctx.Err() != nil {
		_ = res.stream.Close()
		return nil, r.acquireFailed(ctx, facing, ctx.Err())
	}

	h := newHandle(r, facing, res.stream)

	r.mu.Lock()
	r.current = h
	r.mu.Unlock()
	metrics.CameraActiveLeases.Inc()

	go h.probeTorch()

	logger.Debug(ctx, "Camera acquired", zap.String("handle", h.id.String()), zap.String("facing", string(facing)))
	return h, nil
}

func (r *Resource) acquireFailed(ctx context.Context, facing entities.Facing, cause error) error {
	if ctx.Err() != nil {
		metrics.CameraAcquireFailures.WithLabelValues("cancelled").Inc()
		return fmt.Errorf("%w: %w", domainerrors.ErrCaptureCancelled, ctx.Err())
	}
	reason := "device"
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = "timeout"
		logger.Warn(ctx, "Camera did not respond in time", zap.String("facing", string(facing)))
	}
	metrics.CameraAcquireFailures.WithLabelValues(reason).Inc()
	if errors.Is(cause, domainerrors.ErrDeviceUnavailable) {
		return cause
	}
	return fmt.Errorf("%w: %w", domainerrors.ErrDeviceUnavailable, cause)
}

// Current returns the live handle, if any.
func (r *Resource) Current() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// ReleaseAll releases whichever handle is live.
func (r *Resource) ReleaseAll() {
	r.releaseCurrent()
}

func (r *Resource) releaseCurrent() {
	r.mu.Lock()
	h := r.current
	r.mu.Unlock()
	if h != nil {
		h.Release()
	}
}

func (r *Resource) forget(h *Handle) {
	r.mu.Lock()
	if r.current == h {
		r.current = nil
	}
	r.mu.Unlock()
}

// Handle is a live lease on the device. Release is idempotent.
type Handle struct {
	id       uuid.UUID
	resource *Resource
	facing   entities.Facing
	stream   Stream

	mu       sync.Mutex
	released bool
	torchOn  bool

	torchSupported atomic.Bool
	probeCtx       context.Context
	cancelProbe    context.CancelFunc
	probed         chan struct{}
}

func newHandle(r *Resource, facing entities.Facing, stream Stream) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		id:          uuid.New(),
		resource:    r,
		facing:      facing,
		stream:      stream,
		probeCtx:    ctx,
		cancelProbe: cancel,
		probed:      make(chan struct{}),
	}
}

func (h *Handle) probeTorch() {
	defer close(h.probed)
	ok, err := h.stream.ProbeTorch(h.probeCtx)
	if err != nil || !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.released {
		h.torchSupported.Store(true)
	}
}

// ID returns the handle identifier.
func (h *Handle) ID() uuid.UUID { return h.id }

// Facing returns the camera the handle holds.
func (h *Handle) Facing() entities.Facing { return h.facing }

// TorchSupported is false until the asynchronous probe reports a torch.
func (h *Handle) TorchSupported() bool { return h.torchSupported.Load() }

// TorchOn reports the last torch state applied.
func (h *Handle) TorchOn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.torchOn
}

// WaitTorchProbe blocks until the torch probe finishes or ctx is done.
func (h *Handle) WaitTorchProbe(ctx context.Context) bool {
	select {
	case <-h.probed:
		return h.TorchSupported()
	case <-ctx.Done():
		return false
	}
}

// Released reports whether the handle has been torn down.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Snapshot samples the current frame.
func (h *Handle) Snapshot() (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, domainerrors.ErrResourceReleased
	}
	frame, err := h.stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("sample frame: %w", err)
	}
	return frame, nil
}

// SetTorch toggles the torch. It returns ErrCapabilityUnsupported without
// touching the hardware when no torch was detected.
func (h *Handle) SetTorch(on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return domainerrors.ErrResourceReleased
	}
	if !h.torchSupported.Load() {
		return domainerrors.ErrCapabilityUnsupported
	}
	if err := h.stream.SetTorch(on); err != nil {
		return fmt.Errorf("set torch: %w", err)
	}
	h.torchOn = on
	return nil
}

// Release stops the stream. Extra calls are no-ops.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.torchOn = false
	h.mu.Unlock()

	h.cancelProbe()
	if err := h.stream.Close(); err != nil {
		logger.Warn(context.Background(), "Camera stream close failed", zap.String("handle", h.id.String()), zap.Error(err))
	}
	h.resource.forget(h)
	metrics.CameraActiveLeases.Dec()
}
