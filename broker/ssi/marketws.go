package ssi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// ConnState is the market-data socket's lifecycle, grounded on the teacher's
// polymarket WebSocket feed state machine, generalized with a FATAL state.
// This client never enters FATAL: every dial or read failure moves it to
// RECONNECTING, and it keeps retrying until ctx is cancelled.
type ConnState string

const (
	Disconnected ConnState = "DISCONNECTED"
	Connecting   ConnState = "CONNECTING"
	Connected    ConnState = "CONNECTED"
	Reconnecting ConnState = "RECONNECTING"
	Fatal        ConnState = "FATAL"
)

const (
	pingInterval    = 30 * time.Second
	pongWaitTimeout = 10 * time.Second
)

// MarketDataStream implements ports.MarketData: a resilient WebSocket client
// that reconnects with exponential backoff and replays subscriptions after
// every reconnect.
type MarketDataStream struct {
	mu      sync.Mutex
	url     string
	conn    *websocket.Conn
	state   ConnState
	symbols []vo.Symbol
	retry   retryState
}

type retryState struct {
	attempt int
}

func NewMarketDataStream(url string) *MarketDataStream {
	return &MarketDataStream{url: url, state: Disconnected}
}

type wireTick struct {
	Symbol   string `json:"symbol"`
	Price    int64  `json:"price"`
	Volume   int64  `json:"volume"`
	Exchange string `json:"exchange"`
}

// Stream connects, subscribes to symbols, and emits parsed ticks on the
// returned channel until ctx is cancelled. Malformed frames are dropped and
// logged, never propagated as a stream-ending error (spec.md §7).
func (m *MarketDataStream) Stream(ctx context.Context, symbols []vo.Symbol) (<-chan domain.Tick, error) {
	m.mu.Lock()
	m.symbols = symbols
	m.mu.Unlock()

	out := make(chan domain.Tick, 1024)

	go m.run(ctx, out)

	return out, nil
}

func (m *MarketDataStream) run(ctx context.Context, out chan<- domain.Tick) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.connectAndSubscribe(ctx); err != nil {
			m.setState(Reconnecting)
			delay := backoffDelay(m.nextAttempt())
			log.Warn().Err(err).Dur("retry_in", delay).Msg("📡 market data connection failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		m.resetAttempts()
		m.pump(ctx, out)
		m.setState(Reconnecting)
	}
}

func (m *MarketDataStream) connectAndSubscribe(ctx context.Context) error {
	m.setState(Connecting)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("ssi: dial market data socket: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	symbols := append([]vo.Symbol(nil), m.symbols...)
	m.mu.Unlock()

	sub := map[string]interface{}{"action": "subscribe", "symbols": symbols}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("ssi: send subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pingInterval + pongWaitTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pingInterval + pongWaitTimeout))
		return nil
	})

	m.setState(Connected)
	log.Info().Int("symbols", len(symbols)).Msg("📡 market data stream connected and subscribed")
	return nil
}

func (m *MarketDataStream) pump(ctx context.Context, out chan<- domain.Tick) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}
	defer conn.Close()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Warn().Err(err).Msg("📡 market data read failed")
				return
			}

			var wire wireTick
			if err := json.Unmarshal(data, &wire); err != nil {
				log.Warn().Err(err).Msg("📉 dropped malformed market data frame")
				continue
			}

			tick, err := domain.NewTick(vo.Symbol(wire.Symbol), vo.NewPrice(wire.Price), wire.Volume, vo.Exchange(wire.Exchange), time.Now())
			if err != nil {
				log.Warn().Err(err).Str("symbol", wire.Symbol).Msg("📉 dropped invalid tick")
				continue
			}

			select {
			case out <- tick:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Msg("📡 ping failed")
				return
			}
		}
	}
}

func (m *MarketDataStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	m.state = Disconnected
	return m.conn.Close()
}

func (m *MarketDataStream) setState(s ConnState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *MarketDataStream) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *MarketDataStream) nextAttempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retry.attempt++
	return m.retry.attempt
}

func (m *MarketDataStream) resetAttempts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retry.attempt = 0
}

// backoffDelay returns 1s doubled attempt times, capped at 30s. The run loop
// counts attempts from 1, so reconnect waits are 2s, 4s, 8s, 16s, then 30s.
func backoffDelay(attempt int) time.Duration {
	delay := time.Second
	for i := 0; i < attempt && delay < 30*time.Second; i++ {
		delay *= 2
	}
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}
