package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/showtixhq/showtix-backend/pkg/config"
	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/logger"
	"github.com/showtixhq/showtix-backend/pkg/redis"
)

type outboxReader interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

// OutboxPublishJobParams configure the outbox drain.
type OutboxPublishJobParams struct {
	Logger    *logger.Logger
	Repo      outboxReader
	Publisher redis.Publisher
	Config    config.OutboxConfig
}

// NewOutboxPublishJob builds the job that pushes unpublished order events to
// the Redis channel. Rows that keep failing past MaxAttempts are skipped so
// one poisoned payload cannot stall the drain.
func NewOutboxPublishJob(params OutboxPublishJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("publisher required")
	}
	cfg := params.Config
	if cfg.Channel == "" {
		return nil, fmt.Errorf("outbox channel required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &outboxPublishJob{
		logg:      params.Logger,
		repo:      params.Repo,
		publisher: params.Publisher,
		cfg:       cfg,
	}, nil
}

type outboxPublishJob struct {
	logg      *logger.Logger
	repo      outboxReader
	publisher redis.Publisher
	cfg       config.OutboxConfig
}

func (j *outboxPublishJob) Name() string { return "outbox-publish" }

func (j *outboxPublishJob) Run(ctx context.Context) error {
	rows, err := j.repo.FetchUnpublished(j.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetching unpublished events: %w", err)
	}

	published := 0
	var errs error
	for _, row := range rows {
		if row.AttemptCount >= j.cfg.MaxAttempts {
			logCtx := j.logg.WithField(ctx, "outbox_event_id", row.ID.String())
			j.logg.Warn(logCtx, "outbox event exhausted its attempts; skipping")
			continue
		}
		if err := j.publisher.Publish(ctx, j.cfg.Channel, string(row.Payload)); err != nil {
			if markErr := j.repo.MarkFailed(row.ID, err); markErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("marking event %s failed: %w", row.ID, markErr))
			}
			errs = multierr.Append(errs, fmt.Errorf("publishing event %s: %w", row.ID, err))
			continue
		}
		if err := j.repo.MarkPublished(row.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("marking event %s published: %w", row.ID, err))
			continue
		}
		published++
	}

	if published > 0 {
		logCtx := j.logg.WithField(ctx, "published", published)
		j.logg.Info(logCtx, "outbox events published")
	}
	return errs
}
