package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

const defaultRetryInterval = time.Hour

type retrySweeper interface {
	RetryFailed(ctx context.Context) (*fulfillment.RetryResult, error)
}

type FulfillmentRetryJobParams struct {
	Logger    *logger.Logger
	Scheduler retrySweeper
	Interval  time.Duration
	Deadline  time.Duration
}

// NewFulfillmentRetryJob wraps the retry scheduler as a cron job.
func NewFulfillmentRetryJob(params FulfillmentRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Scheduler == nil {
		return nil, fmt.Errorf("retry scheduler required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	return &fulfillmentRetryJob{
		logg:      params.Logger,
		scheduler: params.Scheduler,
		interval:  interval,
		deadline:  params.Deadline,
	}, nil
}

type fulfillmentRetryJob struct {
	logg      *logger.Logger
	scheduler retrySweeper
	interval  time.Duration
	deadline  time.Duration
}

func (j *fulfillmentRetryJob) Name() string { return "fulfillment-retry" }

func (j *fulfillmentRetryJob) Interval() time.Duration { return j.interval }

func (j *fulfillmentRetryJob) Run(ctx context.Context) error {
	if j.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.deadline)
		defer cancel()
	}

	result, err := j.scheduler.RetryFailed(ctx)
	if err != nil {
		return fmt.Errorf("fulfillment retry sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": result.Scanned,
		"placed":  result.Placed,
		"failed":  result.Failed,
		"skipped": result.Skipped,
	})
	j.logg.Info(logCtx, "fulfillment retry job complete")
	return nil
}
