package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ledgerdesk/ledgerdesk/internal/jobs"
)

// DefaultOverdueSweepCron runs the sweep shortly after midnight UTC.
const DefaultOverdueSweepCron = "5 0 * * *"

// Sweeper flags overdue invoices.
type Sweeper interface {
	SweepOverdue(ctx context.Context, now time.Time) (int64, error)
}

// OverdueSweepJob runs the overdue sweep on behalf of the scheduler or the CLI.
type OverdueSweepJob struct {
	sweeper Sweeper
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewOverdueSweepJob constructs the job.
func NewOverdueSweepJob(sweeper Sweeper, metrics *jobmetrics.Metrics, logger *slog.Logger) *OverdueSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueSweepJob{sweeper: sweeper, metrics: metrics, logger: logger, now: time.Now}
}

// Run performs one sweep and returns the number of invoices changed.
func (j *OverdueSweepJob) Run(ctx context.Context) (int64, error) {
	tracker := j.metrics.Track("overdue_sweep")
	n, err := j.sweeper.SweepOverdue(ctx, j.now().UTC())
	if err != nil {
		j.logger.Error("overdue sweep failed", slog.String("job", "overdue_sweep"), slog.Any("error", err))
		return 0, tracker.End(err)
	}
	j.metrics.AddOverdue(n)
	j.logger.Info("overdue sweep finished", slog.String("job", "overdue_sweep"), slog.Int64("modified", n))
	return n, tracker.End(nil)
}

// ProcessTask implements asynq.Handler.
func (j *OverdueSweepJob) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	_, err := j.Run(ctx)
	return err
}

// OverdueSweepCron registers the sweep on spec, falling back to the default schedule.
func OverdueSweepCron(spec string) CronRegistration {
	if spec == "" {
		spec = DefaultOverdueSweepCron
	}
	return CronRegistration{Spec: spec, Task: NewOverdueSweepTask()}
}
