package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/pkg/db/models"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/pagination"
)

// EventDetail is an event plus its purchasable tiers. DisplayRemaining sums
// only active tiers so a disabled tier's stock stops advertising itself,
// while the ledger's own counts are untouched.
type EventDetail struct {
	Event            models.Event
	DisplayRemaining int
}

// EventList is one catalog page.
type EventList struct {
	Events     []models.Event
	NextCursor string
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &Service{repo: repo}, nil
}

func (s *Service) ListEvents(ctx context.Context, tenantID uuid.UUID, params pagination.Params) (*EventList, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	events, next, err := s.repo.ListOnSaleEvents(ctx, tenantID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing events")
	}
	return &EventList{Events: events, NextCursor: next}, nil
}

func (s *Service) GetEvent(ctx context.Context, tenantID, eventID uuid.UUID) (*EventDetail, error) {
	event, err := s.repo.FindEventWithTiers(ctx, tenantID, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading event")
	}

	remaining := 0
	for _, tier := range event.PriceOptions {
		remaining += tier.RemainingCount
	}
	return &EventDetail{Event: *event, DisplayRemaining: remaining}, nil
}
