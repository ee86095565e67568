package jobs

import (
	"context"
	"log/slog"
)

// SessionPurger deletes expired login sessions
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionCleanupJob removes login sessions past their expiry
type SessionCleanupJob struct {
	store  SessionPurger
	logger *slog.Logger
}

// NewSessionCleanupJob creates the job around store
func NewSessionCleanupJob(store SessionPurger, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{store: store, logger: logger}
}

// Name implements Job
func (j *SessionCleanupJob) Name() string { return "session_cleanup" }

// Run implements Job
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	deleted, err := j.store.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.logger.Info("Purged expired login sessions", slog.Int64("deleted", deleted))
	}
	return nil
}
