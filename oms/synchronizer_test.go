package oms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/vo"
)

type fakeBroker struct {
	statuses map[string]domain.OrderStatus
	filled   map[string]vo.Quantity
	avgFill  map[string]vo.Price
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, o domain.Order) (string, error) { return "", nil }
func (f *fakeBroker) CancelOrder(ctx context.Context, brokerOrderID string) error     { return nil }
func (f *fakeBroker) GetOrderStatus(ctx context.Context, brokerOrderID string) (domain.OrderStatus, vo.Quantity, vo.Price, error) {
	return f.statuses[brokerOrderID], f.filled[brokerOrderID], f.avgFill[brokerOrderID], nil
}
func (f *fakeBroker) GetOpenOrders(ctx context.Context, symbol *vo.Symbol) ([]ports.BrokerOrderSnapshot, error) {
	return nil, nil
}

type fakeOrderStore struct {
	open    []domain.Order
	updated []domain.Order
}

func (f *fakeOrderStore) Insert(ctx context.Context, o domain.Order) error { return nil }
func (f *fakeOrderStore) Update(ctx context.Context, o domain.Order) error {
	f.updated = append(f.updated, o)
	return nil
}
func (f *fakeOrderStore) Get(ctx context.Context, orderID string) (domain.Order, bool, error) {
	return domain.Order{}, false, nil
}
func (f *fakeOrderStore) OpenOrders(ctx context.Context) ([]domain.Order, error) { return f.open, nil }

func TestSyncOnce_TransitionsLocalOrderOnBrokerStatusChange(t *testing.T) {
	brokerID := "BR-1"
	broker := &fakeBroker{
		statuses: map[string]domain.OrderStatus{brokerID: domain.Matched},
		filled:   map[string]vo.Quantity{brokerID: 100},
		avgFill:  map[string]vo.Price{brokerID: vo.NewPrice(50000)},
	}
	store := &fakeOrderStore{open: []domain.Order{
		{OrderID: "o1", Status: domain.Pending, Quantity: 100, BrokerOrderID: &brokerID},
	}}

	sync := NewSynchronizer(broker, store, time.Millisecond)
	sync.syncOnce(context.Background())

	require.Len(t, store.updated, 1)
	assert.Equal(t, domain.Matched, store.updated[0].Status)
	assert.Equal(t, vo.Quantity(100), store.updated[0].FilledQuantity)
}

func TestSyncOnce_InvalidTransitionKeepsLocalStatusUntouched(t *testing.T) {
	brokerID := "BR-2"
	broker := &fakeBroker{
		statuses: map[string]domain.OrderStatus{brokerID: domain.Pending}, // terminal -> pending is not whitelisted
	}
	store := &fakeOrderStore{open: []domain.Order{
		{OrderID: "o2", Status: domain.Matched, BrokerOrderID: &brokerID},
	}}

	sync := NewSynchronizer(broker, store, time.Millisecond)
	sync.syncOnce(context.Background())

	assert.Empty(t, store.updated, "a non-whitelisted broker status must not mutate local state")
}

func TestSyncOnce_SkipsOrdersNeverSubmittedToBroker(t *testing.T) {
	broker := &fakeBroker{statuses: map[string]domain.OrderStatus{}}
	store := &fakeOrderStore{open: []domain.Order{
		{OrderID: "o3", Status: domain.Created, BrokerOrderID: nil},
	}}

	sync := NewSynchronizer(broker, store, time.Millisecond)
	sync.syncOnce(context.Background())

	assert.Empty(t, store.updated)
}

func TestNewSynchronizer_DefaultsIntervalWhenNonPositive(t *testing.T) {
	sync := NewSynchronizer(&fakeBroker{}, &fakeOrderStore{}, 0)
	assert.Equal(t, DefaultSyncInterval, sync.interval)
}
