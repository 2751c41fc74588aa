package ssi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tranvietlong/vnalgo-core/domain"
)

func TestMapBrokerStatus_KnownStatusesMapCorrectly(t *testing.T) {
	cases := map[string]domain.OrderStatus{
		"NEW":              domain.Pending,
		"PARTIALLY_FILLED": domain.PartialFill,
		"FILLED":           domain.Matched,
		"REJECTED":         domain.Rejected,
		"CANCELED":         domain.Cancelled,
	}
	for wire, want := range cases {
		assert.Equal(t, want, mapBrokerStatus(wire))
	}
}

func TestMapBrokerStatus_UnknownStatusDefaultsToPending(t *testing.T) {
	assert.Equal(t, domain.Pending, mapBrokerStatus("SOME_FUTURE_STATUS"))
}
