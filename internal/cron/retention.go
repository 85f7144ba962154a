package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/metrics"
)

const (
	defaultOutboxRetention   = 30 * 24 * time.Hour
	defaultDeliveryRetention = 90 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PurgeFunc deletes rows older than cutoff inside tx and returns the count.
type PurgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

type RetentionJobParams struct {
	Name      string
	Logger    *logger.Logger
	DB        txRunner
	Metrics   *metrics.CronJobMetrics
	Retention time.Duration
	Purge     PurgeFunc
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	metrics   *metrics.CronJobMetrics
	retention time.Duration
	purge     PurgeFunc
	now       func() time.Time
}

// NewRetentionJob builds a job that purges rows older than the retention window.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	switch {
	case params.Name == "":
		return nil, fmt.Errorf("job name required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Purge == nil:
		return nil, fmt.Errorf("purge func required")
	case params.Retention <= 0:
		return nil, fmt.Errorf("retention must be positive")
	}
	return &retentionJob{
		name:      params.Name,
		logg:      params.Logger,
		db:        params.DB,
		metrics:   params.Metrics,
		retention: params.Retention,
		purge:     params.Purge,
		now:       time.Now,
	}, nil
}

type outboxPurger interface {
	DeleteSettledBefore(tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

// NewOutboxRetentionJob purges published and dead-lettered outbox rows.
func NewOutboxRetentionJob(logg *logger.Logger, db txRunner, repo outboxPurger, m *metrics.CronJobMetrics, retention time.Duration, terminalAttempts int) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return NewRetentionJob(RetentionJobParams{
		Name:      "outbox-retention",
		Logger:    logg,
		DB:        db,
		Metrics:   m,
		Retention: retention,
		Purge: func(_ context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return repo.DeleteSettledBefore(tx, cutoff, terminalAttempts)
		},
	})
}

type deliveryPurger interface {
	DeleteDeliveriesBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewDeliveryRetentionJob purges old notification delivery records.
func NewDeliveryRetentionJob(logg *logger.Logger, db txRunner, repo deliveryPurger, m *metrics.CronJobMetrics, retention time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notification repository required")
	}
	if retention <= 0 {
		retention = defaultDeliveryRetention
	}
	return NewRetentionJob(RetentionJobParams{
		Name:      "notification-delivery-retention",
		Logger:    logg,
		DB:        db,
		Metrics:   m,
		Retention: retention,
		Purge:     repo.DeleteDeliveriesBefore,
	})
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.metrics.AddPurged(j.name, deleted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	}), "retention cleanup complete")
	return nil
}
