package refund

import (
	"time"

	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
)

// Policy decides whether a paid order may still be refunded. Refunds close
// once the event start is less than Cutoff away.
type Policy struct {
	Cutoff time.Duration
}

func NewPolicy(cutoff time.Duration) Policy {
	if cutoff <= 0 {
		cutoff = 24 * time.Hour
	}
	return Policy{Cutoff: cutoff}
}

// Evaluate returns nil when the order can be refunded at instant now.
// Only PAID orders qualify, and the event must start at least Cutoff from
// now. Starting exactly Cutoff away still qualifies.
func (p Policy) Evaluate(order models.Order, eventStart time.Time, now time.Time) error {
	if order.Status != enums.OrderStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be refunded").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	if eventStart.Sub(now) < p.Cutoff {
		return pkgerrors.New(pkgerrors.CodeWindowExpired, "refunds close before the event").
			WithDetails(map[string]any{
				"eventStartsAt": eventStart.Format(time.RFC3339),
				"cutoff":        p.Cutoff.String(),
			})
	}
	return nil
}
