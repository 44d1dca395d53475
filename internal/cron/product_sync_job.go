package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/dropship-backend/internal/catalog"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

const defaultProductSyncInterval = 6 * time.Hour

type catalogSyncer interface {
	SyncAll(ctx context.Context) ([]catalog.SyncResult, error)
}

type ProductSyncJobParams struct {
	Logger   *logger.Logger
	Syncer   catalogSyncer
	Interval time.Duration
	Deadline time.Duration
}

// NewProductSyncJob wraps the catalog syncer as a cron job.
func NewProductSyncJob(params ProductSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("catalog syncer required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultProductSyncInterval
	}
	return &productSyncJob{
		logg:     params.Logger,
		syncer:   params.Syncer,
		interval: interval,
		deadline: params.Deadline,
	}, nil
}

type productSyncJob struct {
	logg     *logger.Logger
	syncer   catalogSyncer
	interval time.Duration
	deadline time.Duration
}

func (j *productSyncJob) Name() string { return "product-sync" }

func (j *productSyncJob) Interval() time.Duration { return j.interval }

func (j *productSyncJob) Run(ctx context.Context) error {
	if j.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.deadline)
		defer cancel()
	}

	results, err := j.syncer.SyncAll(ctx)
	if err != nil {
		return fmt.Errorf("product sync: %w", err)
	}
	var created, updated, failed int
	for _, result := range results {
		created += result.Created
		updated += result.Updated
		failed += result.Failed
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"suppliers": len(results),
		"created":   created,
		"updated":   updated,
		"failed":    failed,
	})
	j.logg.Info(logCtx, "product sync job complete")
	return nil
}
