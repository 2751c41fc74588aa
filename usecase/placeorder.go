package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// placeOrderLocks serializes PlaceOrder calls per idempotency key: the
// check-then-act idempotency flow below is only at-most-once under
// concurrency if two callers with the same key never run it interleaved.
// The store-side ON CONFLICT DO NOTHING in storage.Record only dedups the
// persisted row after the fact; it does nothing to stop both callers from
// reaching broker.PlaceOrder first.
var placeOrderLocks = newKeyedMutex()

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*keyLock{}}
}

// Lock acquires the per-key lock, blocking until any other holder of the
// same key releases it, and returns the unlock function. Locks for keys with
// no remaining holders are evicted so the map does not grow unbounded.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// PlaceOrderRequest is the caller's order intent.
type PlaceOrderRequest struct {
	IdempotencyKey string
	Symbol         vo.Symbol
	Side           domain.OrderSide
	Type           domain.OrderType
	Quantity       vo.Quantity
	Price          vo.Price
	CeilingPrice   vo.Price
	FloorPrice     vo.Price
	DryRun         bool
}

// PlaceOrderResult is what place_order returns, and what is cached under the
// idempotency key.
type PlaceOrderResult struct {
	OrderID       string      `json:"order_id"`
	BrokerOrderID *string     `json:"broker_order_id,omitempty"`
	Status        domain.OrderStatus `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	WasDuplicate  bool        `json:"-"`
}

// RiskCheckFunc evaluates a built order and reports approval; a non-empty
// reason means rejection.
type RiskCheckFunc func(domain.Order) (approved bool, reason string)

// PlaceOrder implements spec.md §4.6's seven-step flow, with no reordering.
func PlaceOrder(
	ctx context.Context,
	req PlaceOrderRequest,
	broker ports.Broker,
	orderStore ports.OrderStore,
	idemStore ports.IdempotencyStore,
	riskFn RiskCheckFunc,
	now time.Time,
) (PlaceOrderResult, error) {
	unlock := placeOrderLocks.Lock(req.IdempotencyKey)
	defer unlock()

	// 1. Idempotency lookup.
	if rec, found, err := idemStore.Check(ctx, req.IdempotencyKey); err != nil {
		return PlaceOrderResult{}, fmt.Errorf("usecase: idempotency check: %w", err)
	} else if found {
		var cached PlaceOrderResult
		if err := json.Unmarshal(rec.Result, &cached); err != nil {
			return PlaceOrderResult{}, fmt.Errorf("usecase: decode cached result: %w", err)
		}
		cached.WasDuplicate = true
		return cached, nil
	}

	order := domain.Order{
		Symbol:         req.Symbol,
		Side:           req.Side,
		Type:           req.Type,
		Quantity:       req.Quantity,
		Price:          req.Price,
		CeilingPrice:   req.CeilingPrice,
		FloorPrice:     req.FloorPrice,
		Status:         domain.Created,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// 2. Risk gate.
	if riskFn != nil {
		if approved, reason := riskFn(order); !approved {
			rejected, err := order.TransitionTo(domain.Rejected, domain.OrderPatch{RejectionReason: &reason}, now)
			if err != nil {
				return PlaceOrderResult{}, err
			}
			result := PlaceOrderResult{OrderID: rejected.OrderID, Status: rejected.Status, RejectionReason: reason}
			recordResult(ctx, idemStore, req.IdempotencyKey, result, now)
			return result, nil
		}
	}

	// 3. Assign a fresh order_id.
	order.OrderID = uuid.NewString()

	// 4/5. Broker submission, unless dry-run.
	pending, err := order.TransitionTo(domain.Pending, domain.OrderPatch{}, now)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	order = pending

	if req.DryRun {
		order.BrokerOrderID = nil
	} else {
		brokerOrderID, err := broker.PlaceOrder(ctx, order)
		if err != nil {
			reason := err.Error()
			failed, terr := order.TransitionTo(domain.BrokerRejected, domain.OrderPatch{RejectionReason: &reason}, now)
			if terr != nil {
				return PlaceOrderResult{}, terr
			}
			result := PlaceOrderResult{OrderID: failed.OrderID, Status: failed.Status, RejectionReason: reason}
			recordResult(ctx, idemStore, req.IdempotencyKey, result, now)
			return result, nil
		}
		order.BrokerOrderID = &brokerOrderID
	}

	// 6. Persist, best-effort.
	if err := orderStore.Insert(ctx, order); err != nil {
		log.Warn().Err(err).Str("order_id", order.OrderID).Msg("⚠️ order persistence failed; broker submission stands")
	}

	// 7. Record success under the idempotency key.
	result := PlaceOrderResult{OrderID: order.OrderID, BrokerOrderID: order.BrokerOrderID, Status: order.Status}
	recordResult(ctx, idemStore, req.IdempotencyKey, result, now)

	return result, nil
}

func recordResult(ctx context.Context, store ports.IdempotencyStore, key string, result PlaceOrderResult, now time.Time) {
	payload, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Msg("usecase: failed to marshal place_order result for idempotency record")
		return
	}
	rec := domain.IdempotencyRecord{
		Key:       key,
		Result:    payload,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.DefaultIdempotencyTTL),
	}
	if err := store.Record(ctx, rec); err != nil {
		log.Error().Err(err).Str("key", key).Msg("usecase: failed to record idempotency result")
	}
}
