package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/service"
)

const slaLockKey = "helpdesk:sla:sweep"

// SLAScheduler runs the SLA sweep on a cron cadence. A redis lock keeps
// concurrent replicas from sweeping at the same time; the audit-level
// uniqueness still backstops duplicate emissions if the lock is lost.
type SLAScheduler struct {
	sla    *service.SLAService
	redis  *redis.Client
	logger *zap.Logger
	cfg    config.SLAConfig
	cron   *cron.Cron
}

// NewSLAScheduler constructs the scheduler.
func NewSLAScheduler(sla *service.SLAService, redisClient *redis.Client, logger *zap.Logger, cfg config.SLAConfig) *SLAScheduler {
	return &SLAScheduler{
		sla:    sla,
		redis:  redisClient,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(),
	}
}

// Start registers the sweep job and launches the cron loop.
func (s *SLAScheduler) Start() error {
	if !s.cfg.SweepEnabled {
		s.logger.Info("sla sweep disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.CronSpec, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sla sweep scheduled", zap.String("spec", s.cfg.CronSpec))
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *SLAScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *SLAScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if !s.acquireLock(ctx) {
		s.logger.Debug("sla sweep skipped, another instance holds the lock")
		return
	}
	defer s.releaseLock()

	result, err := s.sla.RunCheck(ctx, s.cfg.WarnRatio, false)
	if err != nil {
		s.logger.Error("sla sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("sla sweep finished",
		zap.Int("warnings", result.Warnings),
		zap.Int("breaches", result.Breaches))
}

func (s *SLAScheduler) acquireLock(ctx context.Context) bool {
	if s.redis == nil {
		return true
	}
	ttl := time.Duration(s.cfg.LockTTLSec) * time.Second
	ok, err := s.redis.SetNX(ctx, slaLockKey, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		// Lock service down; run anyway, the audit uniqueness holds the line.
		s.logger.Warn("sla lock unavailable, proceeding", zap.Error(err))
		return true
	}
	return ok
}

func (s *SLAScheduler) releaseLock() {
	if s.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.redis.Del(ctx, slaLockKey).Err(); err != nil {
		s.logger.Warn("sla lock release failed", zap.Error(err))
	}
}
