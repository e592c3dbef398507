package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/showtixhq/showtix-backend/pkg/redis"
)

// IdempotencyGuard labels redelivered notifications. It is observational
// only: the order status precondition remains the authoritative dedupe, so
// neither a missing nor a stale Redis entry is ever unsafe.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether the transaction was already seen, marking it
// seen otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, errors.New("transaction id is required")
	}
	key := g.store.IdempotencyKey(g.scope, transactionID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release removes the mark so a failed confirmation can be retried on the
// provider's next redelivery.
func (g *IdempotencyGuard) Release(ctx context.Context, transactionID string) error {
	if transactionID == "" {
		return errors.New("transaction id is required")
	}
	key := g.store.IdempotencyKey(g.scope, transactionID)
	return g.store.Del(ctx, key)
}
