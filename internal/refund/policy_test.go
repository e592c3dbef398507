package refund

import (
	"testing"
	"time"

	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
)

func TestEvaluateCutoffBoundary(t *testing.T) {
	policy := NewPolicy(24 * time.Hour)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	paid := models.Order{Status: enums.OrderStatusPaid}

	cases := []struct {
		name       string
		eventStart time.Time
		wantCode   pkgerrors.Code
		allow      bool
	}{
		{
			name:       "well before cutoff",
			eventStart: now.Add(48 * time.Hour),
			allow:      true,
		},
		{
			name:       "exactly at cutoff",
			eventStart: now.Add(24 * time.Hour),
			allow:      true,
		},
		{
			name:       "one second inside cutoff",
			eventStart: now.Add(24*time.Hour - time.Second),
			wantCode:   pkgerrors.CodeWindowExpired,
		},
		{
			name:       "event already started",
			eventStart: now.Add(-time.Hour),
			wantCode:   pkgerrors.CodeWindowExpired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Evaluate(paid, tc.eventStart, now)
			if tc.allow {
				if err != nil {
					t.Fatalf("expected refund allowed, got %v", err)
				}
				return
			}
			if !pkgerrors.HasCode(err, tc.wantCode) {
				t.Fatalf("expected code %s, got %v", tc.wantCode, err)
			}
		})
	}
}

func TestEvaluateRequiresPaidStatus(t *testing.T) {
	policy := NewPolicy(24 * time.Hour)
	now := time.Now()
	eventStart := now.Add(72 * time.Hour)

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
		enums.OrderStatusUsed,
	} {
		err := policy.Evaluate(models.Order{Status: status}, eventStart, now)
		if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("expected state conflict for %s, got %v", status, err)
		}
	}
}

func TestNewPolicyDefaultsCutoff(t *testing.T) {
	policy := NewPolicy(0)
	if policy.Cutoff != 24*time.Hour {
		t.Fatalf("expected 24h default, got %s", policy.Cutoff)
	}
}
