package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tranvietlong/vnalgo-core/vo"
)

func TestOrder_TransitionTo_IllegalTransition(t *testing.T) {
	// Scenario 2: order in CREATED, attempt transition_to(MATCHED).
	o := Order{OrderID: "o1", Status: Created, Quantity: 500}

	_, err := o.TransitionTo(Matched, OrderPatch{}, time.Now())
	require.Error(t, err)
	var invalidErr ErrInvalidTransition
	assert.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, Created, o.Status, "original order must be unchanged")
}

func TestOrder_TransitionTo_ValidPath(t *testing.T) {
	o := Order{OrderID: "o1", Status: Created, Quantity: 500}

	pending, err := o.TransitionTo(Pending, OrderPatch{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, Pending, pending.Status)

	filled := vo.Quantity(500)
	matched, err := pending.TransitionTo(Matched, OrderPatch{FilledQuantity: &filled}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, Matched, matched.Status)
	assert.True(t, matched.IsTerminal())
}

func TestOrder_TransitionTo_FilledExceedsQuantityRejected(t *testing.T) {
	o := Order{OrderID: "o1", Status: Pending, Quantity: 100}
	over := vo.Quantity(150)

	_, err := o.TransitionTo(Matched, OrderPatch{FilledQuantity: &over}, time.Now())
	assert.ErrorIs(t, err, ErrFilledExceedsQuantity)
}

func TestOrder_TerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	for _, terminal := range []OrderStatus{Matched, Rejected, BrokerRejected, Cancelled} {
		o := Order{Status: terminal}
		assert.True(t, o.IsTerminal())
		_, err := o.TransitionTo(Pending, OrderPatch{}, time.Now())
		assert.Error(t, err)
	}
}

func TestOrder_RemainingQuantity(t *testing.T) {
	o := Order{Quantity: 500, FilledQuantity: 200}
	assert.Equal(t, vo.Quantity(300), o.RemainingQuantity())
}
