package entities

import (
	"encoding/base64"
	"time"
)

// Facing selects the physical camera
type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// Valid reports whether f is a known facing.
func (f Facing) Valid() bool {
	return f == FacingUser || f == FacingEnvironment
}

// CaptureSlot names the session slot an artifact fills
type CaptureSlot string

const (
	SlotDocumentFront CaptureSlot = "document_front"
	SlotDocumentBack  CaptureSlot = "document_back"
	SlotFace          CaptureSlot = "face"
	SlotLeftHand      CaptureSlot = "left_hand"
	SlotRightHand     CaptureSlot = "right_hand"
)

// Step returns the onboarding step during which the slot may be filled.
func (s CaptureSlot) Step() (Step, bool) {
	switch s {
	case SlotDocumentFront, SlotDocumentBack:
		return StepDocumentCapture, true
	case SlotFace, SlotLeftHand, SlotRightHand:
		return StepBiometricCapture, true
	}
	return "", false
}

// DefaultFacing is the camera a slot is normally captured with.
func (s CaptureSlot) DefaultFacing() Facing {
	if s == SlotFace {
		return FacingUser
	}
	return FacingEnvironment
}

// CaptureState is the lifecycle state of a capture stage
type CaptureState string

const (
	CaptureIdle       CaptureState = "IDLE"
	CapturePreviewing CaptureState = "PREVIEWING"
	CaptureCaptured   CaptureState = "CAPTURED"
	CaptureCommitted  CaptureState = "COMMITTED"
)

// ArtifactSource tells how an artifact was produced
type ArtifactSource string

const (
	SourceCamera ArtifactSource = "camera"
	SourceUpload ArtifactSource = "upload"
)

// Artifact is a captured still image
type Artifact struct {
	MimeType   string         `json:"mimeType"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Facing     Facing         `json:"facing,omitempty"`
	Source     ArtifactSource `json:"source"`
	Data       []byte         `json:"-"`
	CapturedAt time.Time      `json:"capturedAt"`
}

// DataURL renders the artifact as a data URL.
func (a *Artifact) DataURL() string {
	if a == nil {
		return ""
	}
	return "data:" + a.MimeType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// StageStatus is a read-only view of a capture stage
type StageStatus struct {
	Slot           CaptureSlot  `json:"slot"`
	State          CaptureState `json:"state"`
	Starting       bool         `json:"starting"`
	Facing         Facing       `json:"facing,omitempty"`
	TorchSupported bool         `json:"torchSupported"`
	TorchOn        bool         `json:"torchOn"`
	LastError      string       `json:"lastError,omitempty"`
	Artifact       *Artifact    `json:"artifact,omitempty"`
}
