// Package scheduler runs the periodic background jobs of the print service.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SpoolCleaner removes spooled documents older than a given age
type SpoolCleaner interface {
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// SpoolCleanupConfig holds configuration for the spool retention job
type SpoolCleanupConfig struct {
	// Retention is how long a printed document stays in the spool
	Retention time.Duration
	// Interval is how often the spool is swept
	Interval time.Duration
	// RunTimeout bounds a single sweep
	RunTimeout time.Duration
}

// DefaultSpoolCleanupConfig keeps documents for three days and sweeps hourly
func DefaultSpoolCleanupConfig() SpoolCleanupConfig {
	return SpoolCleanupConfig{
		Retention:  72 * time.Hour,
		Interval:   time.Hour,
		RunTimeout: 5 * time.Minute,
	}
}

// SpoolCleanupScheduler sweeps the spool on a fixed interval
type SpoolCleanupScheduler struct {
	config  SpoolCleanupConfig
	cleaner SpoolCleaner
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time
	removed   int
}

// NewSpoolCleanupScheduler creates a scheduler; zero config fields take defaults
func NewSpoolCleanupScheduler(config SpoolCleanupConfig, cleaner SpoolCleaner, logger *zap.Logger) *SpoolCleanupScheduler {
	d := DefaultSpoolCleanupConfig()
	if config.Retention <= 0 {
		config.Retention = d.Retention
	}
	if config.Interval <= 0 {
		config.Interval = d.Interval
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = d.RunTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpoolCleanupScheduler{
		config:  config,
		cleaner: cleaner,
		logger:  logger,
	}
}

// Start launches the sweep loop. Calling Start twice is a no-op.
func (s *SpoolCleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Spool cleanup started",
		zap.Duration("retention", s.config.Retention),
		zap.Duration("interval", s.config.Interval),
	)
	return nil
}

// Stop cancels the loop and waits for a running sweep, bounded by ctx
func (s *SpoolCleanupScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Spool cleanup stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SpoolCleanupScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns the number of removed documents
func (s *SpoolCleanupScheduler) RunOnce(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	removed, err := s.cleaner.CleanupOlderThan(runCtx, s.config.Retention)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.removed += removed
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Spool cleanup failed", zap.Int("removed", removed), zap.Error(err))
		return removed
	}
	if removed > 0 {
		s.logger.Info("Spool cleanup", zap.Int("removed", removed))
	}
	return removed
}

// Stats reports when the last sweep ran and how many documents were removed in total
func (s *SpoolCleanupScheduler) Stats() (lastRun time.Time, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.removed
}
