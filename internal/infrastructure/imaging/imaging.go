// Package imaging turns camera frames and uploads into stored artifacts.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"kyc-wallet.backend/internal/domain/entities"
)

// Upload size bounds; larger images are scaled down to fit.
const (
	MaxUploadWidth  = 1600
	MaxUploadHeight = 1600
)

// MirrorHorizontal flips img on the X axis.
func MirrorHorizontal(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	// x' = (minX + maxX) - x
	s2d := f64.Aff3{
		-1, 0, float64(b.Min.X + b.Max.X),
		0, 1, 0,
	}
	xdraw.NearestNeighbor.Transform(dst, s2d, img, b, draw.Src, nil)
	return dst
}

// FitWithin scales img down, preserving aspect ratio, so that it fits in
// maxW x maxH. Images already within bounds are returned unchanged.
func FitWithin(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scale := float64(maxW) / float64(w)
	if hs := float64(maxH) / float64(h); hs < scale {
		scale = hs
	}
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decodes a JPEG or PNG payload.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// FromFrame builds the stored artifact for a camera frame. Front-facing
// sensors deliver mirrored frames; those are flipped back so the artifact
// matches the physical scene.
func FromFrame(frame image.Image, facing entities.Facing, now time.Time) (*entities.Artifact, error) {
	if facing == entities.FacingUser {
		frame = MirrorHorizontal(frame)
	}
	return build(frame, facing, entities.SourceCamera, now)
}

// FromUpload decodes, bounds and re-encodes an uploaded image.
func FromUpload(data []byte, now time.Time) (*entities.Artifact, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return build(FitWithin(img, MaxUploadWidth, MaxUploadHeight), "", entities.SourceUpload, now)
}

func build(img image.Image, facing entities.Facing, source entities.ArtifactSource, now time.Time) (*entities.Artifact, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &entities.Artifact{
		MimeType:   "image/png",
		Width:      b.Dx(),
		Height:     b.Dy(),
		Facing:     facing,
		Source:     source,
		Data:       data,
		CapturedAt: now,
	}, nil
}
