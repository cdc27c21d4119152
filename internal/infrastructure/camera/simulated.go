package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
)

// Scene colours of the simulated device. The physical scene is red on the
// left and blue on the right.
var (
	SceneLeft  = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	SceneRight = color.RGBA{R: 30, G: 30, B: 220, A: 255}
)

// SimulatedConfig configures a SimulatedDevice
type SimulatedConfig struct {
	Width            int
	Height           int
	OpenDelay        time.Duration
	TorchProbeDelay  time.Duration
	TorchSupported   bool
	PermissionDenied bool
	// Facings lists the cameras present. Empty means both.
	Facings []entities.Facing
	// Hang makes Open block until its context is done.
	Hang bool
}

// SimulatedDevice stands in for a phone camera. Front-facing frames come
// off the sensor mirrored, as real selfie cameras deliver them.
type SimulatedDevice struct {
	cfg SimulatedConfig

	mu         sync.Mutex
	open       int
	totalOpens int
}

// NewSimulatedDevice creates a simulated device.
func NewSimulatedDevice(cfg SimulatedConfig) *SimulatedDevice {
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	return &SimulatedDevice{cfg: cfg}
}

func (d *SimulatedDevice) has(facing entities.Facing) bool {
	if len(d.cfg.Facings) == 0 {
		return true
	}
	for _, f := range d.cfg.Facings {
		if f == facing {
			return true
		}
	}
	return false
}

// Open implements Device.
func (d *SimulatedDevice) Open(ctx context.Context, facing entities.Facing) (Stream, error) {
	if d.cfg.PermissionDenied {
		return nil, fmt.Errorf("%w: permission denied", domainerrors.ErrDeviceUnavailable)
	}
	if !d.has(facing) {
		return nil, fmt.Errorf("%w: no %s camera", domainerrors.ErrDeviceUnavailable, facing)
	}

	if d.cfg.Hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.cfg.OpenDelay > 0 {
		t := time.NewTimer(d.cfg.OpenDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	d.open++
	d.totalOpens++
	d.mu.Unlock()

	return &simulatedStream{device: d, facing: facing}, nil
}

// OpenStreams returns the number of streams not yet closed.
func (d *SimulatedDevice) OpenStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// TotalOpens returns how many streams were ever opened.
func (d *SimulatedDevice) TotalOpens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalOpens
}

type simulatedStream struct {
	device *SimulatedDevice
	facing entities.Facing

	mu     sync.Mutex
	closed bool
	torch  bool
	frames int
}

func (s *simulatedStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("stream closed")
	}
	s.frames++

	w, h := s.device.cfg.Width, s.device.cfg.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	mirrored := s.facing == entities.FacingUser
	for x := 0; x < w; x++ {
		left := x < w/2
		if mirrored {
			left = !left
		}
		c := SceneRight
		if left {
			c = SceneLeft
		}
		if s.torch {
			c.G = 200
		}
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (s *simulatedStream) ProbeTorch(ctx context.Context) (bool, error) {
	if d := s.device.cfg.TorchProbeDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return s.device.cfg.TorchSupported, nil
}

func (s *simulatedStream) SetTorch(on bool) error {
	if !s.device.cfg.TorchSupported {
		return domainerrors.ErrCapabilityUnsupported
	}
	s.mu.Lock()
	s.torch = on
	s.mu.Unlock()
	return nil
}

func (s *simulatedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.device.mu.Lock()
	s.device.open--
	s.device.mu.Unlock()
	return nil
}
