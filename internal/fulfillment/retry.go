package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

// retryBackoff computes the wait before the given attempt may be retried:
// base doubled per prior attempt, capped at limit.
func retryBackoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = time.Minute
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if limit > 0 && delay >= limit {
			return limit
		}
	}
	if limit > 0 && delay > limit {
		return limit
	}
	return delay
}

// RetryResult summarizes one RetryFailed sweep.
type RetryResult struct {
	Scanned int
	Placed  int
	Failed  int
	Skipped int
}

// RetryScheduler re-drives failed fulfillment records that still have
// attempts left and whose backoff window has passed.
type RetryScheduler struct {
	store        Store
	orchestrator *Orchestrator
	logg         *logger.Logger
	cfg          config.FulfillmentConfig
	now          func() time.Time
}

type RetrySchedulerParams struct {
	Store        Store
	Orchestrator *Orchestrator
	Logger       *logger.Logger
	Config       config.FulfillmentConfig
	Now          func() time.Time
}

func NewRetryScheduler(p RetrySchedulerParams) (*RetryScheduler, error) {
	if p.Store == nil {
		return nil, errors.New("store is required")
	}
	if p.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &RetryScheduler{
		store:        p.Store,
		orchestrator: p.Orchestrator,
		logg:         p.Logger,
		cfg:          p.Config,
		now:          p.Now,
	}, nil
}

// RetryFailed sweeps failed records under the attempt ceiling and re-places
// them one by one. A record that keeps failing is left failed with a later
// next_attempt_at; records are never auto-cancelled.
func (s *RetryScheduler) RetryFailed(ctx context.Context) (*RetryResult, error) {
	records, err := s.store.ListRetryable(ctx, s.cfg.MaxAttempts, s.now(), s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("listing retryable records: %w", err)
	}

	result := &RetryResult{Scanned: len(records)}
	var storeErrs error
	for _, record := range records {
		outcome, err := s.orchestrator.ProcessRecord(ctx, record.ID)
		if err != nil {
			storeErrs = multierr.Append(storeErrs, fmt.Errorf("record %s: %w", record.ID, err))
			result.Failed++
			continue
		}
		switch {
		case outcome.Skipped:
			result.Skipped++
		case outcome.Err != nil:
			result.Failed++
		default:
			result.Placed++
		}
	}

	if storeErrs != nil {
		s.logg.Error(ctx, "retry sweep hit store errors", storeErrs)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"scanned": result.Scanned,
		"placed":  result.Placed,
		"failed":  result.Failed,
		"skipped": result.Skipped,
	}), "fulfillment retry sweep finished")
	return result, nil
}
