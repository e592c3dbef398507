package cron

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/showtixhq/showtix-backend/pkg/config"
	"github.com/showtixhq/showtix-backend/pkg/db/models"
)

type stubOutboxRepo struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (s *stubOutboxRepo) FetchUnpublished(limit int) ([]models.OutboxEvent, error) {
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func (s *stubOutboxRepo) MarkPublished(id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	s.failed = append(s.failed, id)
	return nil
}

type stubPublisher struct {
	payloads []string
	channel  string
	err      error
}

func (s *stubPublisher) Publish(ctx context.Context, channel string, payload any) error {
	if s.err != nil {
		return s.err
	}
	s.channel = channel
	s.payloads = append(s.payloads, payload.(string))
	return nil
}

func outboxRow(attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:           uuid.New(),
		Payload:      json.RawMessage(`{"eventId":"x"}`),
		AttemptCount: attempts,
	}
}

func publishConfig() config.OutboxConfig {
	return config.OutboxConfig{Channel: "showtix.order-events", BatchSize: 10, MaxAttempts: 3}
}

func TestOutboxPublishJobDrainsRows(t *testing.T) {
	repo := &stubOutboxRepo{rows: []models.OutboxEvent{outboxRow(0), outboxRow(1)}}
	pub := &stubPublisher{}
	job, err := NewOutboxPublishJob(OutboxPublishJobParams{
		Logger: testLogger(), Repo: repo, Publisher: pub, Config: publishConfig(),
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(pub.payloads) != 2 {
		t.Fatalf("expected 2 published payloads, got %d", len(pub.payloads))
	}
	if pub.channel != "showtix.order-events" {
		t.Fatalf("unexpected channel %q", pub.channel)
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected 2 rows marked published, got %d", len(repo.published))
	}
}

func TestOutboxPublishJobMarksFailures(t *testing.T) {
	repo := &stubOutboxRepo{rows: []models.OutboxEvent{outboxRow(0)}}
	pub := &stubPublisher{err: errors.New("redis down")}
	job, err := NewOutboxPublishJob(OutboxPublishJobParams{
		Logger: testLogger(), Repo: repo, Publisher: pub, Config: publishConfig(),
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected failure marked, got %d", len(repo.failed))
	}
	if len(repo.published) != 0 {
		t.Fatal("expected nothing marked published")
	}
}

func TestOutboxPublishJobSkipsExhaustedRows(t *testing.T) {
	repo := &stubOutboxRepo{rows: []models.OutboxEvent{outboxRow(3), outboxRow(0)}}
	pub := &stubPublisher{}
	job, err := NewOutboxPublishJob(OutboxPublishJobParams{
		Logger: testLogger(), Repo: repo, Publisher: pub, Config: publishConfig(),
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(pub.payloads) != 1 {
		t.Fatalf("expected only the fresh row published, got %d", len(pub.payloads))
	}
}
