package tickets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showtixhq/showtix-backend/pkg/db/models"
	"github.com/showtixhq/showtix-backend/pkg/enums"
	pkgerrors "github.com/showtixhq/showtix-backend/pkg/errors"
	"github.com/showtixhq/showtix-backend/pkg/logger"
)

// Issuer mints the ticket rows backing an order's quantity. Issuance runs
// inside the order-creation transaction so tickets appear atomically with
// the order.
type Issuer struct {
	logg *logger.Logger
	now  func() time.Time
}

func NewIssuer(logg *logger.Logger) (*Issuer, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Issuer{logg: logg, now: time.Now}, nil
}

// Issue creates qty tickets for the order, numbered "1" through the quantity.
// Each scan code is a one-way digest over the order, the ticket and the
// issuance instant; holding a code reveals nothing about either identifier.
func (i *Issuer) Issue(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, qty int) ([]models.Ticket, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": qty})
	}

	issued := make([]models.Ticket, 0, qty)
	for seat := 1; seat <= qty; seat++ {
		ticketID := uuid.New()
		ticket := models.Ticket{
			ID:       ticketID,
			OrderID:  orderID,
			SeatNo:   strconv.Itoa(seat),
			ScanCode: scanCode(orderID, ticketID, i.now()),
			Status:   enums.TicketStatusValid,
		}
		if err := tx.Create(&ticket).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issuing ticket")
		}
		issued = append(issued, ticket)
	}

	logCtx := i.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"quantity": qty,
	})
	i.logg.Info(logCtx, "tickets issued")
	return issued, nil
}

func scanCode(orderID, ticketID uuid.UUID, at time.Time) string {
	sum := sha256.Sum256([]byte(orderID.String() + ":" + ticketID.String() + ":" + strconv.FormatInt(at.UnixNano(), 10)))
	return hex.EncodeToString(sum[:])
}
