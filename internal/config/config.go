package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	KYC    KYCConfig
	Camera CameraConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// RedisConfig holds Redis configuration. An empty URL disables Redis.
type RedisConfig struct {
	URL      string
	Password string
}

// Enabled reports whether a Redis URL is configured
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// KYCConfig holds onboarding flow configuration
type KYCConfig struct {
	FacePolicy        string
	OnboardingBonus   int
	VerificationDelay time.Duration
	SessionTTL        time.Duration
	SweepInterval     time.Duration
}

// CameraConfig holds capture device configuration
type CameraConfig struct {
	AcquireTimeout   time.Duration
	OpenDelay        time.Duration
	TorchProbeDelay  time.Duration
	FrameWidth       int
	FrameHeight      int
	TorchSupported   bool
	PermissionDenied bool
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		KYC: KYCConfig{
			FacePolicy:        getEnv("KYC_FACE_POLICY", "skippable"),
			OnboardingBonus:   getEnvAsInt("KYC_ONBOARDING_BONUS", 100),
			VerificationDelay: getEnvAsDuration("KYC_VERIFICATION_DELAY", 3*time.Second),
			SessionTTL:        getEnvAsDuration("KYC_SESSION_TTL", 30*time.Minute),
			SweepInterval:     getEnvAsDuration("KYC_SWEEP_INTERVAL", 30*time.Second),
		},
		Camera: CameraConfig{
			AcquireTimeout:   getEnvAsDuration("CAMERA_ACQUIRE_TIMEOUT", 10*time.Second),
			OpenDelay:        getEnvAsDuration("CAMERA_OPEN_DELAY", 150*time.Millisecond),
			TorchProbeDelay:  getEnvAsDuration("CAMERA_TORCH_PROBE_DELAY", 300*time.Millisecond),
			FrameWidth:       getEnvAsInt("CAMERA_FRAME_WIDTH", 640),
			FrameHeight:      getEnvAsInt("CAMERA_FRAME_HEIGHT", 480),
			TorchSupported:   getEnvAsBool("CAMERA_TORCH_SUPPORTED", true),
			PermissionDenied: getEnvAsBool("CAMERA_PERMISSION_DENIED", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
