// Package scheduler triggers periodic scans on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/scanner"
)

// Scheduler drives the scan engine on a fixed schedule. A tick that
// lands while a scan is still running is skipped, not queued.
type Scheduler struct {
	engine   *scanner.Engine
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
}

// New creates a scheduler for the given cron spec (e.g. "@every 4h")
func New(engine *scanner.Engine, schedule string) *Scheduler {
	return &Scheduler{
		engine:   engine,
		schedule: schedule,
		logger:   log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the scan job and begins ticking
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("Scan scheduler started")
	return nil
}

// Stop halts the ticker, waiting for a running tick callback to return
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("Scheduler stop timed out")
	}
	s.logger.Info().Msg("Scan scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scanID, err := s.engine.Trigger(ctx, database.ScanTriggerScheduled)
	if err != nil {
		if errors.Is(err, scanner.ErrScanAlreadyRunning) {
			s.logger.Debug().Msg("Scheduled scan skipped: previous run still active")
			return
		}
		s.logger.Error().Err(err).Msg("Scheduled scan failed to start")
		return
	}
	s.logger.Info().Int64("scan_id", scanID).Msg("Scheduled scan started")
}
