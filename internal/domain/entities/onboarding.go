package entities

import (
	"time"

	"github.com/google/uuid"
)

// Step is one stage of the onboarding flow
type Step string

const (
	StepConsent          Step = "CONSENT"
	StepPersonalInfo     Step = "PERSONAL_INFO"
	StepOTP              Step = "OTP"
	StepDocumentCapture  Step = "DOCUMENT_CAPTURE"
	StepBiometricCapture Step = "BIOMETRIC_CAPTURE"
	StepComplete         Step = "COMPLETE"
)

var stepOrder = []Step{
	StepConsent,
	StepPersonalInfo,
	StepOTP,
	StepDocumentCapture,
	StepBiometricCapture,
	StepComplete,
}

// Index returns the position of s in the flow, or -1 for an unknown step.
func (s Step) Index() int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// Next returns the forward successor. COMPLETE has none.
func (s Step) Next() (Step, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(stepOrder) {
		return "", false
	}
	return stepOrder[i+1], true
}

// Prev returns the backward predecessor. CONSENT has none.
func (s Step) Prev() (Step, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return stepOrder[i-1], true
}

// IsCapture reports whether the step drives camera capture stages.
func (s Step) IsCapture() bool {
	return s == StepDocumentCapture || s == StepBiometricCapture
}

// FacePolicy decides whether face capture is mandatory before completion
type FacePolicy string

const (
	FaceRequired  FacePolicy = "required"
	FaceSkippable FacePolicy = "skippable"
)

// PersonalInfo holds the identity fields entered by the user
type PersonalInfo struct {
	FullName    string    `json:"fullName"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	NationalID  string    `json:"nationalId"`
	Phone       string    `json:"phone"`
}

// DocumentImages holds the identity document sides
type DocumentImages struct {
	Front *Artifact `json:"front,omitempty"`
	Back  *Artifact `json:"back,omitempty"`
}

// DocumentOCR is the mock extraction produced from the document front
type DocumentOCR struct {
	FullName    string `json:"fullName"`
	NationalID  string `json:"nationalId"`
	DateOfBirth string `json:"dateOfBirth"`
	Address     string `json:"address"`
}

// BiometricResults holds face and fingerprint-surrogate captures
type BiometricResults struct {
	FaceImage            *Artifact `json:"faceImage,omitempty"`
	FaceCompleted        bool      `json:"faceCompleted"`
	FaceSkipped          bool      `json:"faceSkipped"`
	LeftHand             *Artifact `json:"leftHand,omitempty"`
	RightHand            *Artifact `json:"rightHand,omitempty"`
	LeftHandScore        int       `json:"leftHandScore,omitempty"`
	RightHandScore       int       `json:"rightHandScore,omitempty"`
	FingerprintCompleted bool      `json:"fingerprintCompleted"`
}

// VerificationResult is the simulated backend verdict
type VerificationResult struct {
	Approved       bool      `json:"approved"`
	FaceMatchScore int       `json:"faceMatchScore,omitempty"`
	Reference      string    `json:"reference"`
	VerifiedAt     time.Time `json:"verifiedAt"`
}

// OnboardingSession is the data accumulated during one onboarding attempt
type OnboardingSession struct {
	ID               uuid.UUID           `json:"id"`
	CurrentStep      Step                `json:"currentStep"`
	ConsentGiven     bool                `json:"consentGiven"`
	PersonalInfo     PersonalInfo        `json:"personalInfo"`
	OTPCode          string              `json:"-"`
	OTPVerified      bool                `json:"otpVerified"`
	DocumentImages   DocumentImages      `json:"documentImages"`
	DocumentOCR      *DocumentOCR        `json:"documentOcr,omitempty"`
	BiometricResults BiometricResults    `json:"biometricResults"`
	Verification     *VerificationResult `json:"verification,omitempty"`
	WalletID         string              `json:"walletId,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// IntentType enumerates the user intents the onboarding machine accepts
type IntentType string

const (
	IntentAdvance         IntentType = "ADVANCE"
	IntentBack            IntentType = "BACK"
	IntentSetField        IntentType = "SET_FIELD"
	IntentCompleteCapture IntentType = "COMPLETE_CAPTURE"
	IntentSkipFace        IntentType = "SKIP_FACE"
)

// Field names accepted by SET_FIELD
const (
	FieldConsent     = "consent"
	FieldFullName    = "fullName"
	FieldDateOfBirth = "dateOfBirth"
	FieldNationalID  = "nationalId"
	FieldPhone       = "phone"
	FieldOTP         = "otp"
)

// Intent is a user action dispatched into the onboarding machine
type Intent struct {
	Type     IntentType  `json:"type" binding:"required"`
	Field    string      `json:"field,omitempty"`
	Value    string      `json:"value,omitempty"`
	Slot     CaptureSlot `json:"slot,omitempty"`
	Artifact *Artifact   `json:"-"`
}

// Advance builds an ADVANCE intent.
func Advance() Intent { return Intent{Type: IntentAdvance} }

// Back builds a BACK intent.
func Back() Intent { return Intent{Type: IntentBack} }

// SetField builds a SET_FIELD intent.
func SetField(field, value string) Intent {
	return Intent{Type: IntentSetField, Field: field, Value: value}
}

// CompleteCapture builds a COMPLETE_CAPTURE intent.
func CompleteCapture(slot CaptureSlot, artifact *Artifact) Intent {
	return Intent{Type: IntentCompleteCapture, Slot: slot, Artifact: artifact}
}

// SessionView is the API representation of a live onboarding session
type SessionView struct {
	OnboardingSession
	FacePolicy FacePolicy    `json:"facePolicy"`
	Balance    int64         `json:"balance"`
	Captures   []StageStatus `json:"captures"`
}
