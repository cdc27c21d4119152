package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"kyc-wallet.backend/pkg/logger"
)

const DefaultSweepInterval = 30 * time.Second

type sessionExpirer interface {
	ExpireIdle(ctx context.Context, ttl time.Duration) (int, error)
}

// SessionExpiryJob closes onboarding sessions idle for longer than the TTL
type SessionExpiryJob struct {
	sessions sessionExpirer
	ttl      time.Duration
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionExpiryJob(sessions sessionExpirer, ttl, interval time.Duration) *SessionExpiryJob {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SessionExpiryJob{
		sessions: sessions,
		ttl:      ttl,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (j *SessionExpiryJob) Start(ctx context.Context) {
	logger.Info(ctx, "Starting session expiry job",
		zap.Duration("ttl", j.ttl),
		zap.Duration("interval", j.interval),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Session expiry job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Session expiry job stopped")
			return
		case <-ticker.C:
			j.expireIdleSessions(ctx)
		}
	}
}

func (j *SessionExpiryJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

func (j *SessionExpiryJob) expireIdleSessions(ctx context.Context) {
	expired, err := j.sessions.ExpireIdle(ctx, j.ttl)
	if err != nil {
		logger.Error(ctx, "Error expiring idle sessions", zap.Error(err))
		return
	}
	if expired == 0 {
		return
	}
	logger.Info(ctx, "Expired idle sessions", zap.Int("count", expired))
}
