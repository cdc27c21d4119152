package usecases

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/pkg/logger"
	"kyc-wallet.backend/pkg/metrics"
)

const (
	DefaultOnboardingBonus = 100
	OnboardingBonusDesc    = "Onboarding Bonus"
	MinimumAge             = 18
	DateOfBirthLayout      = "2006-01-02"
	FieldAge               = "age"
	FieldDocumentFront     = "documentFront"
	FieldDocumentBack      = "documentBack"
	FieldFingerprint       = "fingerprint"
	FieldFace              = "face"
	msgNotEditable         = "cannot be changed at this step"
	msgUnknownField        = "unknown field"
	mockOCRNationalID      = "61101-1234567-1"
	mockOCRFullName        = "Ali Khan"
	mockOCRDateOfBirth     = "1997-12-12"
	mockOCRAddress         = "G-10/4 Islamabad"
	leftHandScoreBase      = 90
	rightHandScoreBase     = 88
	handScoreSpread        = 5
)

var (
	nationalIDPattern = regexp.MustCompile(`^\d{5}-\d{7}-\d$`)
	phonePattern      = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
	otpPattern        = regexp.MustCompile(`^\d{6}$`)
)

// WalletLedger is the part of the ledger the onboarding flow drives on completion
type WalletLedger interface {
	CreateWallet(ctx context.Context) (string, error)
	Earn(ctx context.Context, amount int64, description string) (*entities.Transaction, error)
}

// StepListener observes step transitions. It runs after the machine has
// committed the transition and never under the machine lock.
type StepListener func(ctx context.Context, from, to entities.Step)

// OnboardingMachine enforces the onboarding step order and owns the session data
type OnboardingMachine struct {
	mu sync.Mutex

	session      entities.OnboardingSession
	bonusAwarded bool
	verifying    bool

	ledger    WalletLedger
	verifier  Verifier
	policy    entities.FacePolicy
	bonus     int64
	now       func() time.Time
	randIntN  func(n int) int
	listeners []StepListener
}

// MachineOption configures an OnboardingMachine
type MachineOption func(*OnboardingMachine)

// WithFacePolicy sets whether face capture may be skipped.
func WithFacePolicy(policy entities.FacePolicy) MachineOption {
	return func(m *OnboardingMachine) { m.policy = policy }
}

// WithOnboardingBonus sets the points credited on completion.
func WithOnboardingBonus(points int64) MachineOption {
	return func(m *OnboardingMachine) { m.bonus = points }
}

// WithMachineClock overrides the clock used for age checks and timestamps.
func WithMachineClock(now func() time.Time) MachineOption {
	return func(m *OnboardingMachine) { m.now = now }
}

// WithStepListener registers a transition observer.
func WithStepListener(l StepListener) MachineOption {
	return func(m *OnboardingMachine) { m.listeners = append(m.listeners, l) }
}

// NewOnboardingMachine creates a machine positioned at CONSENT
func NewOnboardingMachine(id uuid.UUID, ledger WalletLedger, verifier Verifier, opts ...MachineOption) *OnboardingMachine {
	m := &OnboardingMachine{
		ledger:   ledger,
		verifier: verifier,
		policy:   entities.FaceSkippable,
		bonus:    DefaultOnboardingBonus,
		now:      time.Now,
		randIntN: rand.Intn,
	}
	for _, opt := range opts {
		opt(m)
	}
	now := m.now()
	m.session = entities.OnboardingSession{
		ID:          id,
		CurrentStep: entities.StepConsent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return m
}

// CurrentStep returns the step the session is on
func (m *OnboardingMachine) CurrentStep() entities.Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.CurrentStep
}

// Session returns a copy of the accumulated session data
func (m *OnboardingMachine) Session() entities.OnboardingSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// FacePolicy returns the configured face capture policy
func (m *OnboardingMachine) FacePolicy() entities.FacePolicy {
	return m.policy
}

// Dispatch applies one intent and returns the resulting step. Validation
// failures are returned as domainerrors.FieldErrors and leave the step unchanged.
func (m *OnboardingMachine) Dispatch(ctx context.Context, intent entities.Intent) (entities.Step, error) {
	m.mu.Lock()
	from := m.session.CurrentStep
	err := m.apply(ctx, intent)
	to := m.session.CurrentStep
	if err == nil {
		m.session.UpdatedAt = m.now()
	}
	m.mu.Unlock()

	if fields, ok := domainerrors.AsFieldErrors(err); ok {
		for field := range fields {
			metrics.ValidationFailures.WithLabelValues(field).Inc()
		}
	}
	if err == nil && from != to {
		metrics.StepTransitions.WithLabelValues(string(from), string(to)).Inc()
		logger.Info(ctx, "Onboarding step changed",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		for _, l := range m.listeners {
			l(ctx, from, to)
		}
	}
	return to, err
}

func (m *OnboardingMachine) apply(ctx context.Context, intent entities.Intent) error {
	switch intent.Type {
	case entities.IntentAdvance:
		return m.advance(ctx)
	case entities.IntentBack:
		return m.back()
	case entities.IntentSetField:
		return m.setField(intent.Field, intent.Value)
	case entities.IntentCompleteCapture:
		return m.completeCapture(intent.Slot, intent.Artifact)
	case entities.IntentSkipFace:
		return m.skipFace()
	}
	return fmt.Errorf("%q: %w", intent.Type, domainerrors.ErrUnknownIntent)
}

func (m *OnboardingMachine) advance(ctx context.Context) error {
	step := m.session.CurrentStep
	next, ok := step.Next()
	if !ok {
		return domainerrors.ErrTerminalStep
	}
	if err := m.validateExit(step); err != nil {
		return err
	}

	switch step {
	case entities.StepOTP:
		m.session.OTPVerified = true
	case entities.StepBiometricCapture:
		if err := m.complete(ctx); err != nil {
			return err
		}
	}
	m.session.CurrentStep = next
	return nil
}

// complete submits the session for verification and awards the onboarding
// bonus. The bonus is credited at most once per machine. Callers hold mu; it
// is released while the verifier runs and the step is checked again after.
func (m *OnboardingMachine) complete(ctx context.Context) error {
	if m.verifying {
		return fmt.Errorf("verification in progress: %w", domainerrors.ErrStepChanged)
	}
	m.verifying = true
	submitted := m.session

	m.mu.Unlock()
	result, err := m.verifier.Verify(ctx, submitted)
	m.mu.Lock()

	m.verifying = false
	if err != nil {
		return fmt.Errorf("submit verification: %w", err)
	}
	if m.session.CurrentStep != entities.StepBiometricCapture {
		return fmt.Errorf("verification finished at step %s: %w", m.session.CurrentStep, domainerrors.ErrStepChanged)
	}
	if err := m.validateExit(entities.StepBiometricCapture); err != nil {
		return err
	}
	m.session.Verification = result

	walletID, err := m.ledger.CreateWallet(ctx)
	if err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}
	m.session.WalletID = walletID

	if m.bonusAwarded {
		return nil
	}
	if _, err := m.ledger.Earn(ctx, m.bonus, OnboardingBonusDesc); err != nil {
		return fmt.Errorf("award onboarding bonus: %w", err)
	}
	m.bonusAwarded = true
	return nil
}

func (m *OnboardingMachine) back() error {
	switch m.session.CurrentStep {
	case entities.StepComplete:
		return domainerrors.ErrTerminalStep
	case entities.StepConsent:
		return domainerrors.ErrInitialStep
	}
	prev, _ := m.session.CurrentStep.Prev()
	m.session.CurrentStep = prev
	return nil
}

func (m *OnboardingMachine) validateExit(step entities.Step) error {
	fields := domainerrors.FieldErrors{}
	s := &m.session

	switch step {
	case entities.StepConsent:
		if !s.ConsentGiven {
			fields.Add(entities.FieldConsent, "consent is required")
		}
	case entities.StepPersonalInfo:
		if strings.TrimSpace(s.PersonalInfo.FullName) == "" {
			fields.Add(entities.FieldFullName, "full name is required")
		}
		if s.PersonalInfo.DateOfBirth.IsZero() {
			fields.Add(entities.FieldDateOfBirth, "date of birth is required")
		} else if ageOn(s.PersonalInfo.DateOfBirth, m.now()) < MinimumAge {
			fields.Add(FieldAge, "must be 18+")
		}
		if !nationalIDPattern.MatchString(s.PersonalInfo.NationalID) {
			fields.Add(entities.FieldNationalID, "must be in 12345-1234567-1 format")
		}
		if !phonePattern.MatchString(s.PersonalInfo.Phone) {
			fields.Add(entities.FieldPhone, "must be in international format, e.g. +923001234567")
		}
	case entities.StepOTP:
		if !otpPattern.MatchString(s.OTPCode) {
			fields.Add(entities.FieldOTP, "must be a 6-digit code")
		}
	case entities.StepDocumentCapture:
		if s.DocumentImages.Front == nil {
			fields.Add(FieldDocumentFront, "front of the document is required")
		}
		if s.DocumentImages.Back == nil {
			fields.Add(FieldDocumentBack, "back of the document is required")
		}
	case entities.StepBiometricCapture:
		if !s.BiometricResults.FingerprintCompleted {
			fields.Add(FieldFingerprint, "both hands must be captured")
		}
		switch {
		case s.BiometricResults.FaceCompleted:
		case m.policy == entities.FaceRequired:
			fields.Add(FieldFace, "face capture is required")
		case !s.BiometricResults.FaceSkipped:
			fields.Add(FieldFace, "capture or skip face verification")
		}
	}
	return fields.OrNil()
}

// ageOn returns completed years between dob and now.
func ageOn(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// editableAt maps each SET_FIELD name to the step that owns it.
var editableAt = map[string]entities.Step{
	entities.FieldConsent:     entities.StepConsent,
	entities.FieldFullName:    entities.StepPersonalInfo,
	entities.FieldDateOfBirth: entities.StepPersonalInfo,
	entities.FieldNationalID:  entities.StepPersonalInfo,
	entities.FieldPhone:       entities.StepPersonalInfo,
	entities.FieldOTP:         entities.StepOTP,
}

func (m *OnboardingMachine) setField(field, value string) error {
	step, known := editableAt[field]
	if !known {
		return domainerrors.FieldErrors{field: msgUnknownField}
	}
	if step != m.session.CurrentStep {
		return domainerrors.FieldErrors{field: msgNotEditable}
	}

	s := &m.session
	switch field {
	case entities.FieldConsent:
		given, err := strconv.ParseBool(value)
		if err != nil {
			return domainerrors.FieldErrors{field: "must be true or false"}
		}
		s.ConsentGiven = given
	case entities.FieldFullName:
		s.PersonalInfo.FullName = strings.TrimSpace(value)
	case entities.FieldDateOfBirth:
		if value == "" {
			s.PersonalInfo.DateOfBirth = time.Time{}
			return nil
		}
		dob, err := time.Parse(DateOfBirthLayout, value)
		if err != nil {
			return domainerrors.FieldErrors{field: "must be a date in YYYY-MM-DD format"}
		}
		s.PersonalInfo.DateOfBirth = dob
	case entities.FieldNationalID:
		s.PersonalInfo.NationalID = strings.TrimSpace(value)
	case entities.FieldPhone:
		s.PersonalInfo.Phone = strings.TrimSpace(value)
	case entities.FieldOTP:
		s.OTPCode = strings.TrimSpace(value)
		s.OTPVerified = false
	}
	return nil
}

func (m *OnboardingMachine) completeCapture(slot entities.CaptureSlot, artifact *entities.Artifact) error {
	step, ok := slot.Step()
	if !ok {
		return fmt.Errorf("capture slot %q: %w", slot, domainerrors.ErrInvalidInput)
	}
	if artifact == nil {
		return fmt.Errorf("capture slot %q without artifact: %w", slot, domainerrors.ErrInvalidInput)
	}
	if step != m.session.CurrentStep {
		return fmt.Errorf("capture slot %q at step %s: %w", slot, m.session.CurrentStep, domainerrors.ErrInvalidCaptureState)
	}

	s := &m.session
	switch slot {
	case entities.SlotDocumentFront:
		s.DocumentImages.Front = artifact
		s.DocumentOCR = &entities.DocumentOCR{
			FullName:    mockOCRFullName,
			NationalID:  mockOCRNationalID,
			DateOfBirth: mockOCRDateOfBirth,
			Address:     mockOCRAddress,
		}
	case entities.SlotDocumentBack:
		s.DocumentImages.Back = artifact
	case entities.SlotFace:
		s.BiometricResults.FaceImage = artifact
		s.BiometricResults.FaceCompleted = true
		s.BiometricResults.FaceSkipped = false
	case entities.SlotLeftHand:
		s.BiometricResults.LeftHand = artifact
		s.BiometricResults.LeftHandScore = leftHandScoreBase + m.randIntN(handScoreSpread)
	case entities.SlotRightHand:
		s.BiometricResults.RightHand = artifact
		s.BiometricResults.RightHandScore = rightHandScoreBase + m.randIntN(handScoreSpread)
	}
	s.BiometricResults.FingerprintCompleted = s.BiometricResults.LeftHand != nil && s.BiometricResults.RightHand != nil
	return nil
}

func (m *OnboardingMachine) skipFace() error {
	if m.session.CurrentStep != entities.StepBiometricCapture {
		return fmt.Errorf("skip face at step %s: %w", m.session.CurrentStep, domainerrors.ErrInvalidCaptureState)
	}
	if m.policy == entities.FaceRequired {
		return domainerrors.FieldErrors{FieldFace: "face capture is required"}
	}
	if !m.session.BiometricResults.FaceCompleted {
		m.session.BiometricResults.FaceSkipped = true
	}
	return nil
}
