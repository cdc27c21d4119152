package camera

import (
	"context"
	"image"

	"kyc-wallet.backend/internal/domain/entities"
)

// Device is a platform capture device driver.
type Device interface {
	// Open starts a video stream for the given facing. It may block until
	// the platform grants access; implementations must honour ctx.
	Open(ctx context.Context, facing entities.Facing) (Stream, error)
}

// Stream is a live video stream owned by exactly one Handle.
type Stream interface {
	// Frame samples the current video frame.
	Frame() (image.Image, error)
	// ProbeTorch reports whether the stream exposes a torch. It may block.
	ProbeTorch(ctx context.Context) (bool, error)
	SetTorch(on bool) error
	Close() error
}
