package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/pagination"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Event{}, &models.PriceOption{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, conn
}

func seedEvent(t *testing.T, db *gorm.DB, tenantID uuid.UUID, status enums.EventStatus, createdAt time.Time) models.Event {
	t.Helper()
	event := models.Event{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Title:          "Show " + uuid.NewString()[:8],
		TotalSeats:     100,
		RemainingSeats: 100,
		Status:         status,
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	if err := db.Model(&models.Event{}).Where("id = ?", event.ID).Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("stamp event: %v", err)
	}
	return event
}

func seedTier(t *testing.T, db *gorm.DB, eventID uuid.UUID, status enums.PriceOptionStatus, remaining int) models.PriceOption {
	t.Helper()
	tier := models.PriceOption{
		ID:             uuid.New(),
		EventID:        eventID,
		Name:           "Tier",
		Price:          decimal.RequireFromString("50.00"),
		TotalCount:     remaining,
		RemainingCount: remaining,
		Status:         status,
	}
	if err := db.Create(&tier).Error; err != nil {
		t.Fatalf("seed tier: %v", err)
	}
	return tier
}

func TestListEventsShowsOnlyOnSale(t *testing.T) {
	svc, db := newTestService(t)
	tenant := uuid.New()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	onSale := seedEvent(t, db, tenant, enums.EventStatusOnSale, base)
	seedEvent(t, db, tenant, enums.EventStatusUpcoming, base.Add(time.Minute))
	seedEvent(t, db, tenant, enums.EventStatusCancelled, base.Add(2*time.Minute))
	seedEvent(t, db, uuid.New(), enums.EventStatusOnSale, base.Add(3*time.Minute))

	list, err := svc.ListEvents(context.Background(), tenant, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Events) != 1 || list.Events[0].ID != onSale.ID {
		t.Fatalf("expected only the tenant's on-sale event, got %d", len(list.Events))
	}
}

func TestListEventsPaginates(t *testing.T) {
	svc, db := newTestService(t)
	tenant := uuid.New()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedEvent(t, db, tenant, enums.EventStatusOnSale, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := svc.ListEvents(context.Background(), tenant, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Events) != 2 || first.NextCursor == "" {
		t.Fatalf("expected full page with cursor, got %d", len(first.Events))
	}

	second, err := svc.ListEvents(context.Background(), tenant, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Events) != 1 || second.NextCursor != "" {
		t.Fatalf("expected final page of 1, got %d", len(second.Events))
	}
}

func TestGetEventHidesDisabledTiers(t *testing.T) {
	svc, db := newTestService(t)
	tenant := uuid.New()
	event := seedEvent(t, db, tenant, enums.EventStatusOnSale, time.Now().UTC())
	seedTier(t, db, event.ID, enums.PriceOptionStatusActive, 30)
	seedTier(t, db, event.ID, enums.PriceOptionStatusActive, 20)
	seedTier(t, db, event.ID, enums.PriceOptionStatusDisabled, 50)

	detail, err := svc.GetEvent(context.Background(), tenant, event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if len(detail.Event.PriceOptions) != 2 {
		t.Fatalf("expected 2 active tiers, got %d", len(detail.Event.PriceOptions))
	}
	if detail.DisplayRemaining != 50 {
		t.Fatalf("expected display remaining 50, got %d", detail.DisplayRemaining)
	}
}

func TestGetEventUnknownOrForeignTenant(t *testing.T) {
	svc, db := newTestService(t)
	tenant := uuid.New()
	event := seedEvent(t, db, tenant, enums.EventStatusOnSale, time.Now().UTC())

	_, err := svc.GetEvent(context.Background(), tenant, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = svc.GetEvent(context.Background(), uuid.New(), event.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
}
