package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"kyc-wallet.backend/internal/config"
	"kyc-wallet.backend/internal/domain/entities"
	"kyc-wallet.backend/internal/infrastructure/camera"
	"kyc-wallet.backend/internal/infrastructure/jobs"
	"kyc-wallet.backend/internal/infrastructure/repositories"
	"kyc-wallet.backend/internal/interfaces/http/handlers"
	"kyc-wallet.backend/internal/interfaces/http/middleware"
	"kyc-wallet.backend/internal/usecases"
	"kyc-wallet.backend/pkg/logger"
	"kyc-wallet.backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	runServer  = func(ctx context.Context, srv *http.Server) error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	if cfg.Redis.Enabled() {
		if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
			logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer redis.Close()
		logger.Info(ctx, "Redis initialized")
	} else {
		logger.Warn(ctx, "Redis disabled, idempotency keys are not enforced")
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	sessionUsecase, rewardUsecase, err := buildUsecases(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	expiryJob := jobs.NewSessionExpiryJob(sessionUsecase, cfg.KYC.SessionTTL, cfg.KYC.SweepInterval)
	go expiryJob.Start(ctx)
	defer expiryJob.Stop()

	r := newRouter(routeDeps{
		sessionHandler: handlers.NewSessionHandler(sessionUsecase),
		walletHandler:  handlers.NewWalletHandler(sessionUsecase),
		rewardHandler:  handlers.NewRewardHandler(rewardUsecase),
		idempotency:    middleware.IdempotencyMiddleware(),
	})

	for _, route := range r.Routes() {
		logger.Debug(ctx, "Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info(ctx, "KYC wallet backend starting", zap.String("port", cfg.Server.Port))
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info(context.Background(), "Server stopped")
	return nil
}

func buildUsecases(cfg *config.Config) (*usecases.SessionUsecase, *usecases.RewardUsecase, error) {
	policy := entities.FacePolicy(cfg.KYC.FacePolicy)
	if policy != entities.FaceRequired && policy != entities.FaceSkippable {
		return nil, nil, fmt.Errorf("invalid KYC_FACE_POLICY %q", cfg.KYC.FacePolicy)
	}
	if cfg.KYC.OnboardingBonus <= 0 {
		return nil, nil, fmt.Errorf("KYC_ONBOARDING_BONUS must be positive, got %d", cfg.KYC.OnboardingBonus)
	}

	sessionRepo := repositories.NewSessionRepository()
	rewardCatalog := repositories.NewRewardCatalog()

	sessionUsecase := usecases.NewSessionUsecase(sessionRepo, deviceFactory(cfg.Camera), usecases.SessionOptions{
		FacePolicy:     policy,
		Bonus:          int64(cfg.KYC.OnboardingBonus),
		Verifier:       usecases.NewSimulatedVerifier(cfg.KYC.VerificationDelay),
		AcquireTimeout: cfg.Camera.AcquireTimeout,
	})
	rewardUsecase := usecases.NewRewardUsecase(rewardCatalog, sessionRepo)
	return sessionUsecase, rewardUsecase, nil
}

func deviceFactory(cfg config.CameraConfig) usecases.DeviceFactory {
	return func() camera.Device {
		return camera.NewSimulatedDevice(camera.SimulatedConfig{
			Width:            cfg.FrameWidth,
			Height:           cfg.FrameHeight,
			OpenDelay:        cfg.OpenDelay,
			TorchProbeDelay:  cfg.TorchProbeDelay,
			TorchSupported:   cfg.TorchSupported,
			PermissionDenied: cfg.PermissionDenied,
		})
	}
}
