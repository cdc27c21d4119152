package camera

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
)

func TestResource_AcquireSnapshotRelease(t *testing.T) {
	dev := NewSimulatedDevice(SimulatedConfig{Width: 8, Height: 4})
	res := NewResource(dev)

	h, err := res.Acquire(context.Background(), entities.FacingEnvironment)
	require.NoError(t, err)
	assert.Equal(t, entities.FacingEnvironment, h.Facing())
	assert.Same(t, h, res.Current())
	assert.Equal(t, 1, dev.OpenStreams())

	frame, err := h.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 8, frame.Bounds().Dx())

	h.Release()
	assert.True(t, h.Released())
	assert.Nil(t, res.Current())
	assert.Equal(t, 0, dev.OpenStreams())

	_, err = h.Snapshot()
	assert.ErrorIs(t, err, domainerrors.ErrResourceReleased)
}

func TestResource_ReleaseIsIdempotent(t *testing.T) {
	dev := NewSimulatedDevice(SimulatedConfig{})
	res := NewResource(dev)

	h, err := res.Acquire(context.Background(), entities.FacingUser)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		h.Release()
		h.Release()
		res.ReleaseAll()
	})
	assert.Equal(t, 0, dev.OpenStreams())
}

func TestResource_PermissionDenied(t *testing.T) {
	res := NewResource(NewSimulatedDevice(SimulatedConfig{PermissionDenied: true}))

	h, err := res.Acquire(context.Background(), entities.FacingUser)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, domainerrors.ErrDeviceUnavailable)
}

func TestResource_MissingFacing(t *testing.T) {
	res := NewResource(NewSimulatedDevice(SimulatedConfig{Facings: []entities.Facing{entities.FacingEnvironment}}))

	_, err := res.Acquire(context.Background(), entities.FacingUser)
	assert.ErrorIs(t, err, domainerrors.ErrDeviceUnavailable)

	h, err := res.Acquire(context.Background(), entities.FacingEnvironment)
	require.NoError(t, err)
	h.Release()
}

func TestResource_InvalidFacing(t *testing.T) {
	res := NewResource(NewSimulatedDevice(SimulatedConfig{}))
	_, err := res.Acquire(context.Background(), entities.Facing("sideways"))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestResource_AcquireTimeoutBecomesDeviceUnavailable(t *testing.T) {
	dev := NewSimulatedDevice(SimulatedConfig{Hang: true})
	res := NewResource(dev, WithAcquireTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := res.Acquire(context.Background(), entities.FacingEnvironment)
	assert.ErrorIs(t, err, domainerrors.ErrDeviceUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, dev.OpenStreams())
	assert.Nil(t, res.Current())
}

func TestResource_CancelPendingAcquire(t *testing.T) {
	dev := NewSimulatedDevice(SimulatedConfig{Hang: true})
	res := NewResource(dev)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := res.Acquire(ctx, entities.FacingEnvironment)
	assert.ErrorIs(t, err, domainerrors.ErrCaptureCancelled)
	assert.NotErrorIs(t, err, domainerrors.ErrDeviceUnavailable)
	assert.Equal(t, 0, dev.OpenStreams())
}

func TestResource_SwitchingFacingReleasesPrevious(t *testing.T) {
	dev := NewSimulatedDevice(SimulatedConfig{})
	res := NewResource(dev)

	front, err := res.Acquire(context.Background(), entities.FacingUser)
	require.NoError(t, err)

	rear, err := res.Acquire(context.Background(), entities.FacingEnvironment)
	require.NoError(t, err)
	defer rear.Release()

	assert.True(t, front.Released())
	assert.False(t, rear.Released())
	assert.Equal(t, 1, dev.OpenStreams())
	assert.Equal(t, 2, dev.TotalOpens())

	_, err = front.Snapshot()
	assert.ErrorIs(t, err, domainerrors.ErrResourceReleased)
}

func TestHandle_TorchProbedAsynchronously(t *testing.T) {
	dev := NewSimulatedDevice(SimulatedConfig{TorchSupported: true, TorchProbeDelay: 20 * time.Millisecond})
	res := NewResource(dev)

	h, err := res.Acquire(context.Background(), entities.FacingEnvironment)
	require.NoError(t, err)
	defer h.Release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.True(t, h.WaitTorchProbe(ctx))

	require.NoError(t, h.SetTorch(true))
	assert.True(t, h.TorchOn())
	require.NoError(t, h.SetTorch(false))
	assert.False(t, h.TorchOn())
}

func TestHandle_TorchUnsupportedIsASignal(t *testing.T) {
	res := NewResource(NewSimulatedDevice(SimulatedConfig{}))

	h, err := res.Acquire(context.Background(), entities.FacingUser)
	require.NoError(t, err)
	defer h.Release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.False(t, h.WaitTorchProbe(ctx))

	assert.ErrorIs(t, h.SetTorch(true), domainerrors.ErrCapabilityUnsupported)
	assert.False(t, h.TorchOn())
}

func TestHandle_TorchAfterRelease(t *testing.T) {
	res := NewResource(NewSimulatedDevice(SimulatedConfig{TorchSupported: true}))
	h, err := res.Acquire(context.Background(), entities.FacingEnvironment)
	require.NoError(t, err)
	h.Release()

	assert.ErrorIs(t, h.SetTorch(true), domainerrors.ErrResourceReleased)
	assert.False(t, h.TorchOn())
}

func TestSimulatedDevice_FrontFramesAreMirrored(t *testing.T) {
	dev := NewSimulatedDevice(SimulatedConfig{Width: 10, Height: 2})

	user, err := dev.Open(context.Background(), entities.FacingUser)
	require.NoError(t, err)
	defer user.Close()
	rear, err := dev.Open(context.Background(), entities.FacingEnvironment)
	require.NoError(t, err)
	defer rear.Close()

	uf, err := user.Frame()
	require.NoError(t, err)
	rf, err := rear.Frame()
	require.NoError(t, err)

	assert.Equal(t, SceneRight, uf.At(0, 0))
	assert.Equal(t, SceneLeft, rf.At(0, 0))
}
