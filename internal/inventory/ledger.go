package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/pkg/db/models"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
)

// Ledger owns all mutations of tier and event seat counts. Reserve and
// Release always run inside the caller's transaction so the counts move
// together with the order rows they back.
type Ledger struct {
	logg *logger.Logger
}

func NewLedger(logg *logger.Logger) (*Ledger, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Ledger{logg: logg}, nil
}

// Reserve decrements the tier's remaining count and the event's remaining
// seats by qty. The tier decrement is a single conditional UPDATE, so two
// concurrent reservations can never both win the last seats: whichever
// statement runs second sees the reduced count and matches zero rows.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, eventID, priceOptionID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": qty})
	}

	res := tx.Model(&models.PriceOption{}).
		Where("id = ? AND remaining_count >= ?", priceOptionID, qty).
		Update("remaining_count", gorm.Expr("remaining_count - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserving tier stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough tickets remaining").
			WithDetails(map[string]any{
				"priceOptionId": priceOptionID.String(),
				"requested":     qty,
			})
	}

	res = tx.Model(&models.Event{}).
		Where("id = ? AND remaining_seats >= ?", eventID, qty).
		Update("remaining_seats", gorm.Expr("remaining_seats - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserving event seats")
	}
	if res.RowsAffected == 0 {
		// Tier counts sum to the event total, so a tier win with no event
		// seats means the cached aggregate has drifted.
		return pkgerrors.New(pkgerrors.CodeInternal, "event seat count out of sync with tiers")
	}

	logCtx := l.logg.WithFields(ctx, map[string]any{
		"event_id":        eventID.String(),
		"price_option_id": priceOptionID.String(),
		"quantity":        qty,
	})
	l.logg.Info(logCtx, "inventory reserved")
	return nil
}

// Release returns qty units to the tier and the event. Callers invoke it
// only for units previously reserved, so the additions cannot exceed the
// configured totals.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, eventID, priceOptionID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": qty})
	}

	res := tx.Model(&models.PriceOption{}).
		Where("id = ? AND remaining_count + ? <= total_count", priceOptionID, qty).
		Update("remaining_count", gorm.Expr("remaining_count + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "releasing tier stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "release would exceed tier capacity")
	}

	res = tx.Model(&models.Event{}).
		Where("id = ? AND remaining_seats + ? <= total_seats", eventID, qty).
		Update("remaining_seats", gorm.Expr("remaining_seats + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "releasing event seats")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "release would exceed event capacity")
	}

	logCtx := l.logg.WithFields(ctx, map[string]any{
		"event_id":        eventID.String(),
		"price_option_id": priceOptionID.String(),
		"quantity":        qty,
	})
	l.logg.Info(logCtx, "inventory released")
	return nil
}
