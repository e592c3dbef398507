package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	"github.com/showtixhq/showtix-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(&models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "outbox-test", Level: zerolog.ErrorLevel})
}

func TestEmitWritesEnvelopeInCallerTx(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, testLogger())

	orderID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]any{"orderId": orderID.String(), "quantity": 3},
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	rows, err := repo.FetchUnpublished(10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row got %d", len(rows))
	}
	row := rows[0]
	if row.EventType != enums.EventOrderCreated || row.AggregateID != orderID {
		t.Fatalf("unexpected row: %+v", row)
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Version != 1 {
		t.Fatalf("expected version 1 got %d", envelope.Version)
	}
	if envelope.EventID == "" {
		t.Fatal("expected event id")
	}
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t)), testLogger())
	if err := svc.Emit(context.Background(), nil, DomainEvent{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmitFailedRowsAreRolledBack(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, testLogger())

	sentinel := errors.New("mutation failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]any{},
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel got %v", err)
	}

	rows, err := repo.FetchUnpublished(10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected rollback to discard row, got %d", len(rows))
	}
}

func TestMarkPublishedAndFailed(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)

	var published, failing models.OutboxEvent
	err := db.Transaction(func(tx *gorm.DB) error {
		published = models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
		}
		failing = models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
		}
		if err := repo.Insert(tx, published); err != nil {
			return err
		}
		return repo.Insert(tx, failing)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := repo.MarkPublished(published.ID); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if err := repo.MarkFailed(failing.ID, errors.New("channel closed")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkFailed(failing.ID, errors.New("channel closed")); err != nil {
		t.Fatalf("mark failed again: %v", err)
	}

	rows, err := repo.FetchUnpublished(10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != failing.ID {
		t.Fatalf("expected only the failing row unpublished, got %+v", rows)
	}
	if rows[0].AttemptCount != 2 {
		t.Fatalf("expected 2 attempts got %d", rows[0].AttemptCount)
	}
	if rows[0].LastError == nil || *rows[0].LastError != "channel closed" {
		t.Fatalf("expected last error recorded, got %v", rows[0].LastError)
	}
}
