package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/tranvietlong/vnalgo-core/vo"
)

// OrderSide is BUY or SELL.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType mirrors the order types HOSE/HNX/UPCOM accept.
type OrderType string

const (
	LO  OrderType = "LO"
	ATO OrderType = "ATO"
	ATC OrderType = "ATC"
	MP  OrderType = "MP"
)

// OrderStatus is a node in the order FSM.
type OrderStatus string

const (
	Created        OrderStatus = "CREATED"
	Pending        OrderStatus = "PENDING"
	PartialFill    OrderStatus = "PARTIAL_FILL"
	Matched        OrderStatus = "MATCHED"
	Rejected       OrderStatus = "REJECTED"
	BrokerRejected OrderStatus = "BROKER_REJECTED"
	Cancelled      OrderStatus = "CANCELLED"
)

// validTransitions is the whitelist table driving the FSM. Any attempted
// transition not listed here fails with ErrInvalidTransition — the table is
// the single source of truth, not scattered if-statements.
var validTransitions = map[OrderStatus]map[OrderStatus]bool{
	Created: {Pending: true, Rejected: true, Cancelled: true},
	Pending: {PartialFill: true, Matched: true, BrokerRejected: true, Cancelled: true},
	PartialFill: {PartialFill: true, Matched: true, Cancelled: true},
	Matched:        {},
	Rejected:       {},
	BrokerRejected: {},
	Cancelled:      {},
}

// ErrInvalidTransition indicates a programming bug: an order tried to move
// to a status its current state does not whitelist. Per §7 this surfaces
// immediately rather than being silently absorbed.
type ErrInvalidTransition struct {
	From, To OrderStatus
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("domain: invalid order transition %s -> %s", e.From, e.To)
}

var ErrFilledExceedsQuantity = errors.New("domain: filled_quantity exceeds quantity")

// Order is immutable; every state change produces a new value via
// TransitionTo. Callers replace their reference, they never mutate in place.
type Order struct {
	OrderID         string
	Symbol          vo.Symbol
	Side            OrderSide
	Type            OrderType
	Quantity        vo.Quantity
	Price           vo.Price
	CeilingPrice    vo.Price
	FloorPrice      vo.Price
	Status          OrderStatus
	FilledQuantity  vo.Quantity
	AvgFillPrice    vo.Price
	BrokerOrderID   *string
	RejectionReason string
	IdempotencyKey  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderPatch carries the fields a transition is allowed to set alongside the
// new status. Zero-value fields are left untouched, mirroring the Python
// source's dataclasses.replace(**kwargs) idiom (spec.md §9 Design Notes).
type OrderPatch struct {
	FilledQuantity  *vo.Quantity
	AvgFillPrice    *vo.Price
	BrokerOrderID   *string
	RejectionReason *string
}

// IsTerminal reports whether no further transitions are possible.
func (o Order) IsTerminal() bool {
	return len(validTransitions[o.Status]) == 0
}

// RemainingQuantity is quantity not yet filled.
func (o Order) RemainingQuantity() vo.Quantity {
	return o.Quantity - o.FilledQuantity
}

// OrderValue is price * quantity at order-creation price (not fill price).
func (o Order) OrderValue() vo.Price {
	return vo.Price{Decimal: o.Price.Mul(o.Quantity)}
}

// TransitionTo validates the requested move against the whitelist table,
// applies patch fields, re-checks invariants, and returns a brand-new Order.
// The receiver is never mutated.
func (o Order) TransitionTo(next OrderStatus, patch OrderPatch, now time.Time) (Order, error) {
	allowed, ok := validTransitions[o.Status]
	if !ok || !allowed[next] {
		return Order{}, ErrInvalidTransition{From: o.Status, To: next}
	}

	n := o
	n.Status = next
	n.UpdatedAt = now
	if patch.FilledQuantity != nil {
		n.FilledQuantity = *patch.FilledQuantity
	}
	if patch.AvgFillPrice != nil {
		n.AvgFillPrice = *patch.AvgFillPrice
	}
	if patch.BrokerOrderID != nil {
		n.BrokerOrderID = patch.BrokerOrderID
	}
	if patch.RejectionReason != nil {
		n.RejectionReason = *patch.RejectionReason
	}

	if n.FilledQuantity > n.Quantity {
		return Order{}, ErrFilledExceedsQuantity
	}

	return n, nil
}
