package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/showtixhq/showtix-backend/pkg/logger"
)

type staleOrderExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// OrderExpiryJobParams configure the pending order sweep.
type OrderExpiryJobParams struct {
	Logger *logger.Logger
	Orders staleOrderExpirer
}

// NewOrderExpiryJob builds the job that cancels pending orders whose payment
// never arrived, returning their seats to the tier.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		now:    time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	orders staleOrderExpirer
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	expired, err := j.orders.ExpireStale(ctx, j.now().UTC())
	if expired > 0 {
		logCtx := j.logg.WithField(ctx, "expired", expired)
		j.logg.Info(logCtx, "stale orders expired")
	}
	if err != nil {
		return fmt.Errorf("expiring stale orders: %w", err)
	}
	return nil
}
