package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

const defaultReconcileInterval = 30 * time.Minute

type fulfillmentPoller interface {
	PollActiveFulfillments(ctx context.Context) (*fulfillment.ReconcileResult, error)
}

type ReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler fulfillmentPoller
	Interval   time.Duration
	Deadline   time.Duration
}

// NewReconcileJob wraps the status reconciler as a cron job.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &reconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		interval:   interval,
		deadline:   params.Deadline,
	}, nil
}

type reconcileJob struct {
	logg       *logger.Logger
	reconciler fulfillmentPoller
	interval   time.Duration
	deadline   time.Duration
}

func (j *reconcileJob) Name() string { return "fulfillment-reconcile" }

func (j *reconcileJob) Interval() time.Duration { return j.interval }

func (j *reconcileJob) Run(ctx context.Context) error {
	if j.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.deadline)
		defer cancel()
	}

	result, err := j.reconciler.PollActiveFulfillments(ctx)
	if err != nil {
		return fmt.Errorf("fulfillment reconcile sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"records":   result.PolledRecords,
		"updated":   result.UpdatedRecords,
		"orders":    result.OrdersUpdated,
		"shipments": result.ShipmentsPolled,
		"events":    result.EventsAdded,
	})
	j.logg.Info(logCtx, "fulfillment reconcile job complete")
	return nil
}
