package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pageharvest/pageharvest/internal/metrics"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

// SweeperConfig controls the retention sweep.
type SweeperConfig struct {
	// Schedule is a standard five-field cron expression.
	Schedule string
	// RetentionDays is the age past which results and completed jobs are
	// deleted.
	RetentionDays int
}

// Sweeper deletes aged results and completed jobs on a cron schedule.
type Sweeper struct {
	store   scraper.RetentionStore
	tracker *Tracker
	clock   scraper.Clock
	cfg     SweeperConfig
	logger  *zap.Logger
	cron    *cron.Cron
}

// NewSweeper constructs a Sweeper. The zero config defaults to daily at
// 02:00 with a 30 day retention window.
func NewSweeper(
	store scraper.RetentionStore,
	tracker *Tracker,
	clock scraper.Clock,
	cfg SweeperConfig,
	logger *zap.Logger,
) (*Sweeper, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 2 * * *"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("parse retention schedule: %w", err)
	}
	return &Sweeper{
		store:   store,
		tracker: tracker,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
		cron:    cron.New(),
	}, nil
}

// Start schedules the sweep. The ctx bounds each individual run.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule retention sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one retention pass immediately.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.clock.Now().AddDate(0, 0, -s.cfg.RetentionDays)

	results, err := s.store.DeleteResultsOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed on results", zap.Error(err))
	} else {
		metrics.ObserveRetention("results", results)
	}

	jobs, err := s.store.DeleteCompletedJobsOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed on jobs", zap.Error(err))
	} else {
		metrics.ObserveRetention("jobs", jobs)
	}

	var evicted int
	if s.tracker != nil {
		// Progress entries live far shorter than rows.
		evicted = s.tracker.Evict(s.clock.Now().Add(-24 * time.Hour))
	}

	s.logger.Info("retention sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("results_deleted", results),
		zap.Int64("jobs_deleted", jobs),
		zap.Int("progress_evicted", evicted),
	)
}
