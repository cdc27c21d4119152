package main

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kyc-wallet.backend/internal/config"
)

func withMainHooks(t *testing.T) {
	t.Helper()
	origLoadDotenv := loadDotenv
	origLoadCfg := loadCfg
	origInitLog := initLog
	origInitRedis := initRedis
	origRunServer := runServer

	t.Cleanup(func() {
		loadDotenv = origLoadDotenv
		loadCfg = origLoadCfg
		initLog = origInitLog
		initRedis = origInitRedis
		runServer = origRunServer
	})

	loadDotenv = func(...string) error { return errors.New("no .env") }
	initLog = func(string) {}
}

func baseTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port: "18080",
			Env:  "test",
		},
		KYC: config.KYCConfig{
			FacePolicy:      "skippable",
			OnboardingBonus: 100,
			SessionTTL:      time.Minute,
			SweepInterval:   time.Minute,
		},
		Camera: config.CameraConfig{
			FrameWidth:     8,
			FrameHeight:    4,
			TorchSupported: true,
		},
	}
}

func TestRunMainProcess_StartsServer(t *testing.T) {
	withMainHooks(t)
	cfg := baseTestConfig()
	loadCfg = func() *config.Config { return cfg }
	initRedis = func(string, string) error {
		t.Fatal("redis must not be initialized without a URL")
		return nil
	}

	var addr string
	runServer = func(_ context.Context, srv *http.Server) error {
		addr = srv.Addr
		require.NotNil(t, srv.Handler)
		return nil
	}

	require.NoError(t, runMainProcess())
	assert.Equal(t, ":18080", addr)
}

func TestRunMainProcess_RedisInitFailure(t *testing.T) {
	withMainHooks(t)
	cfg := baseTestConfig()
	cfg.Redis = config.RedisConfig{URL: "redis://127.0.0.1:0"}
	loadCfg = func() *config.Config { return cfg }
	initRedis = func(string, string) error { return errors.New("dial failed") }
	runServer = func(context.Context, *http.Server) error {
		t.Fatal("server must not start")
		return nil
	}

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize redis")
}

func TestRunMainProcess_InvalidKYCConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"face policy", func(c *config.Config) { c.KYC.FacePolicy = "sometimes" }},
		{"bonus", func(c *config.Config) { c.KYC.OnboardingBonus = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withMainHooks(t)
			cfg := baseTestConfig()
			tt.mutate(cfg)
			loadCfg = func() *config.Config { return cfg }
			runServer = func(context.Context, *http.Server) error { return nil }

			require.Error(t, runMainProcess())
		})
	}
}

func TestRunMainProcess_ServerError(t *testing.T) {
	withMainHooks(t)
	cfg := baseTestConfig()
	loadCfg = func() *config.Config { return cfg }
	runServer = func(context.Context, *http.Server) error { return errors.New("address in use") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func TestRunServer_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServer_ListenError(t *testing.T) {
	srv := &http.Server{Addr: "invalid-port", Handler: http.NotFoundHandler()}

	err := runServer(context.Background(), srv)
	assert.Error(t, err)
}
