package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PriceCast/internal/usecase"
	"PriceCast/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Config controls the periodic jobs.
type Config struct {
	// TrainSweepSpec is the cron spec of the full training sweep.
	TrainSweepSpec string
	// SweepTimeout bounds one sweep run.
	SweepTimeout time.Duration
}

// Scheduler drives the nightly training sweep over every known model.
type Scheduler struct {
	cron    *cron.Cron
	manager *usecase.Manager
	cfg     Config
	log     *logger.Logger

	mu      sync.Mutex
	running bool
}

func New(manager *usecase.Manager, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.TrainSweepSpec == "" {
		cfg.TrainSweepSpec = "0 3 * * *"
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = 2 * time.Hour
	}
	return &Scheduler{
		cron:    cron.New(),
		manager: manager,
		cfg:     cfg,
		log:     log,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.TrainSweepSpec, s.runSweep); err != nil {
		return fmt.Errorf("schedule train sweep: %w", err)
	}
	s.cron.Start()
	s.log.Info("scheduler started", logger.String("train_sweep", s.cfg.TrainSweepSpec))
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runSweep() {
	// overlapping sweeps would double-train slow items
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("training sweep still running, skipping this tick")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SweepTimeout)
	defer cancel()

	started := time.Now()
	stats := s.manager.TrainSweep(ctx)
	s.log.Info("scheduled training sweep done",
		logger.Any("stats", stats),
		logger.Duration("elapsed", time.Since(started)))
}
