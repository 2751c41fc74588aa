// Package oms reconciles the locally persisted order book against the
// broker's view of the world. The broker is always the source of truth for
// status; local state only ever catches up to it.
package oms

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/ports"
)

// DefaultSyncInterval is how often Synchronizer polls the broker for open
// orders, per spec.md §4.8.
const DefaultSyncInterval = 2 * time.Second

// Synchronizer periodically fetches local open orders, queries the broker
// for their current status, and transitions the local FSM to match.
type Synchronizer struct {
	broker     ports.Broker
	orderStore ports.OrderStore
	interval   time.Duration
}

func NewSynchronizer(broker ports.Broker, orderStore ports.OrderStore, interval time.Duration) *Synchronizer {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Synchronizer{broker: broker, orderStore: orderStore, interval: interval}
}

// Run blocks, polling on a ticker until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("🔁 order synchronizer starting")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("🛑 order synchronizer stopping")
			return
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

// syncOnce runs a single reconciliation pass; errors are logged and
// swallowed so one bad pass never halts the polling loop.
func (s *Synchronizer) syncOnce(ctx context.Context) {
	orders, err := s.orderStore.OpenOrders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("🛑 failed to load open orders for sync")
		return
	}
	if len(orders) == 0 {
		return
	}

	now := time.Now()
	for _, local := range orders {
		if local.BrokerOrderID == nil {
			continue // never submitted to the broker, nothing to reconcile
		}

		brokerStatus, filledQty, avgFillPrice, err := s.broker.GetOrderStatus(ctx, *local.BrokerOrderID)
		if err != nil {
			log.Warn().Str("order_id", local.OrderID).Err(err).Msg("📡 broker status query failed")
			continue
		}

		if brokerStatus == local.Status {
			continue
		}

		updated, err := local.TransitionTo(brokerStatus, domain.OrderPatch{
			FilledQuantity: &filledQty,
			AvgFillPrice:   &avgFillPrice,
		}, now)
		if err != nil {
			// The broker reported a status our local FSM does not whitelist
			// from the current state. Per spec.md §7 this is logged and the
			// local record is left untouched rather than forced to match.
			log.Error().
				Str("order_id", local.OrderID).
				Str("local_status", string(local.Status)).
				Str("broker_status", string(brokerStatus)).
				Err(err).
				Msg("🛑 broker reported a non-whitelisted transition, keeping local status")
			continue
		}

		if err := s.orderStore.Update(ctx, updated); err != nil {
			log.Error().Str("order_id", updated.OrderID).Err(err).Msg("🛑 failed to persist synced order")
			continue
		}

		log.Info().
			Str("order_id", updated.OrderID).
			Str("from", string(local.Status)).
			Str("to", string(updated.Status)).
			Msg("🔄 order status synced from broker")
	}
}
