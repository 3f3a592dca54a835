package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gugamistri/meetingmind-sub001/internal/service"
)

// Cron specs use six fields (with seconds): sync every 15 minutes,
// retention cleanup daily at 02:00.
const (
	syncSpec    = "0 */15 * * * *"
	cleanupSpec = "0 0 2 * * *"
)

// SyncJobs is what the scheduler drives on the sync service.
type SyncJobs interface {
	SyncAllActive(ctx context.Context) (map[int64]service.AccountSyncResult, error)
	CleanupOldEvents(ctx context.Context) error
}

// DetectorJobs is what the scheduler drives on the detector.
type DetectorJobs interface {
	Start()
	Stop()
}

// Scheduler owns the cron jobs and supervises the detection loop.
type Scheduler struct {
	cron     *cron.Cron
	sync     SyncJobs
	detector DetectorJobs
	log      *zap.SugaredLogger
}

func New(tz *time.Location, sync SyncJobs, detector DetectorJobs, log *zap.SugaredLogger) *Scheduler {
	if tz == nil {
		tz = time.UTC
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(tz)),
		sync:     sync,
		detector: detector,
		log:      log,
	}
}

// Start registers the jobs, launches cron and the detection loop, then
// blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(syncSpec, func() { s.runPeriodicSync(ctx) }); err != nil {
		return fmt.Errorf("add periodic sync: %w", err)
	}

	if _, err := s.cron.AddFunc(cleanupSpec, func() { s.runCleanup(ctx) }); err != nil {
		return fmt.Errorf("add daily cleanup: %w", err)
	}

	s.detector.Start()
	s.cron.Start()
	s.log.Infow("scheduler started", "sync_spec", syncSpec, "cleanup_spec", cleanupSpec)

	<-ctx.Done()
	return nil
}

// Stop drains the cron jobs and halts the detection loop.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.detector.Stop()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runPeriodicSync(ctx context.Context) {
	results, err := s.sync.SyncAllActive(ctx)
	if err != nil {
		s.log.Errorw("periodic sync failed", "error", err)
		return
	}
	for accountID, result := range results {
		if result.Error != "" {
			s.log.Warnw("account sync failed during periodic run", "account", accountID, "error", result.Error)
		}
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	if err := s.sync.CleanupOldEvents(ctx); err != nil {
		s.log.Errorw("daily cleanup failed", "error", err)
	}
}
