package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedisConfig_Enabled(t *testing.T) {
	assert.False(t, RedisConfig{}.Enabled())
	assert.True(t, RedisConfig{URL: "redis://localhost:6379"}.Enabled())
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "skippable", cfg.KYC.FacePolicy)
	assert.Equal(t, 100, cfg.KYC.OnboardingBonus)
	assert.Equal(t, 10*time.Second, cfg.Camera.AcquireTimeout)
	assert.True(t, cfg.Camera.TorchSupported)
	assert.False(t, cfg.Camera.PermissionDenied)
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("KYC_FACE_POLICY", "required")
	t.Setenv("KYC_ONBOARDING_BONUS", "250")
	t.Setenv("KYC_SESSION_TTL", "5m")
	t.Setenv("CAMERA_ACQUIRE_TIMEOUT", "2s")
	t.Setenv("CAMERA_PERMISSION_DENIED", "true")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "redis://cache:6379", cfg.Redis.URL)
	assert.Equal(t, "required", cfg.KYC.FacePolicy)
	assert.Equal(t, 250, cfg.KYC.OnboardingBonus)
	assert.Equal(t, 5*time.Minute, cfg.KYC.SessionTTL)
	assert.Equal(t, 2*time.Second, cfg.Camera.AcquireTimeout)
	assert.True(t, cfg.Camera.PermissionDenied)
}

func TestLoad_ConfigFallbacks(t *testing.T) {
	t.Setenv("KYC_ONBOARDING_BONUS", "not-number")
	t.Setenv("KYC_SESSION_TTL", "bad-duration")
	t.Setenv("CAMERA_TORCH_SUPPORTED", "sometimes")

	cfg := Load()
	assert.Equal(t, 100, cfg.KYC.OnboardingBonus)
	assert.Equal(t, 30*time.Minute, cfg.KYC.SessionTTL)
	assert.True(t, cfg.Camera.TorchSupported)
}
