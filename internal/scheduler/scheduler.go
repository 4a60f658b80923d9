// Package scheduler runs periodic maintenance on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs maintenance hourly at minute 15.
const DefaultSchedule = "15 * * * *"

const jobTimeout = 5 * time.Minute

type archiveCleaner interface {
	CleanupArchive(ctx context.Context) (int, error)
}

type sessionCleaner interface {
	CleanupSessions(ctx context.Context) (int64, error)
}

// Scheduler removes expired export archives and sessions.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	archives archiveCleaner
	sessions sessionCleaner
	logger   *zap.Logger
}

// New builds a scheduler. An empty spec falls back to DefaultSchedule.
func New(spec string, archives archiveCleaner, sessions sessionCleaner, logger *zap.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:     spec,
		archives: archives,
		sessions: sessions,
		logger:   logger.Named("scheduler"),
	}
}

// Start registers the maintenance job and starts the cron goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", s.spec))
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce performs one maintenance pass. Failures are logged.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	if s.archives != nil {
		removed, err := s.archives.CleanupArchive(ctx)
		if err != nil {
			s.logger.Error("export archive cleanup failed", zap.Error(err))
		} else {
			s.logger.Info("export archive cleanup", zap.Int("removed", removed))
		}
	}
	if s.sessions != nil {
		removed, err := s.sessions.CleanupSessions(ctx)
		if err != nil {
			s.logger.Error("session cleanup failed", zap.Error(err))
		} else {
			s.logger.Info("session cleanup", zap.Int64("removed", removed))
		}
	}
}
