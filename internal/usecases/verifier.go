package usecases

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"kyc-wallet.backend/internal/domain/entities"
	"kyc-wallet.backend/pkg/logger"
	"kyc-wallet.backend/pkg/utils"
)

// DefaultVerificationDelay mirrors the review latency shown to users.
const DefaultVerificationDelay = 3 * time.Second

// Verifier submits a completed onboarding session for identity review
type Verifier interface {
	Verify(ctx context.Context, session entities.OnboardingSession) (*entities.VerificationResult, error)
}

// SimulatedVerifier approves every submission after a fixed delay
type SimulatedVerifier struct {
	delay     time.Duration
	now       func() time.Time
	faceScore func() int
}

// NewSimulatedVerifier creates a verifier that waits delay before answering
func NewSimulatedVerifier(delay time.Duration) *SimulatedVerifier {
	return &SimulatedVerifier{
		delay:     delay,
		now:       time.Now,
		faceScore: func() int { return 85 + rand.Intn(15) },
	}
}

// Verify waits for the configured delay, honouring ctx, and returns an approval.
func (v *SimulatedVerifier) Verify(ctx context.Context, session entities.OnboardingSession) (*entities.VerificationResult, error) {
	if v.delay > 0 {
		timer := time.NewTimer(v.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	result := &entities.VerificationResult{
		Approved:   true,
		Reference:  strings.ToUpper(utils.PrefixedID("KYC-", 10)),
		VerifiedAt: v.now(),
	}
	if session.BiometricResults.FaceCompleted {
		result.FaceMatchScore = v.faceScore()
	}

	logger.Info(ctx, "Verification submitted",
		zap.String("reference", result.Reference),
		zap.Bool("approved", result.Approved),
		zap.Int("face_match_score", result.FaceMatchScore),
	)
	return result, nil
}
