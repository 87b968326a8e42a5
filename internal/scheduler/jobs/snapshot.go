// Package jobs holds the concrete scheduled jobs.
package jobs

import (
	"context"

	"github.com/zhwen/stockpool/backend/internal/backup"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// SnapshotJob writes the nightly store snapshot.
type SnapshotJob struct {
	backup   *backup.Manager
	schedule string
	logger   *logger.Logger
}

// NewSnapshotJob creates a new snapshot job
func NewSnapshotJob(mgr *backup.Manager, schedule string, log *logger.Logger) *SnapshotJob {
	return &SnapshotJob{
		backup:   mgr,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "store_snapshot"
}

// Schedule returns the cron schedule from config.
func (j *SnapshotJob) Schedule() string {
	return j.schedule
}

// Run writes one snapshot.
func (j *SnapshotJob) Run(ctx context.Context) error {
	path, err := j.backup.Snapshot(ctx)
	if err != nil {
		return err
	}

	j.logger.WithField("path", path).Info("Scheduled snapshot completed")
	return nil
}
