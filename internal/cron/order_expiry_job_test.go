package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/showtixhq/showtix-backend/pkg/logger"
)

type stubExpirer struct {
	expired int
	err     error
	calls   int
	lastNow time.Time
}

func (s *stubExpirer) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	s.calls++
	s.lastNow = now
	return s.expired, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Level: zerolog.ErrorLevel})
}

func TestOrderExpiryJobRunsSweep(t *testing.T) {
	expirer := &stubExpirer{expired: 3}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: testLogger(), Orders: expirer})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "order-expiry" {
		t.Fatalf("unexpected name %q", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.calls != 1 {
		t.Fatalf("expected one sweep, got %d", expirer.calls)
	}
	if expirer.lastNow.IsZero() {
		t.Fatal("expected sweep instant passed through")
	}
}

func TestOrderExpiryJobPropagatesError(t *testing.T) {
	expirer := &stubExpirer{expired: 1, err: errors.New("release failed")}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: testLogger(), Orders: expirer})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error propagated")
	}
}

func TestNewOrderExpiryJobValidation(t *testing.T) {
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Orders: &stubExpirer{}}); err == nil {
		t.Fatal("expected logger requirement")
	}
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected orders requirement")
	}
}
