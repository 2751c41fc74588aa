// Package storage implements the core's persistence ports against an
// embedded DuckDB database: a single-writer, single-process columnar engine
// accessed through database/sql, matching spec.md §6's "embedded analytical
// store" description.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/resilience"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// schema defines the three tables and secondary indices spec.md §6
// enumerates: ticks, orders, idempotency_keys.
const schema = `
CREATE TABLE IF NOT EXISTS ticks (
	symbol   VARCHAR NOT NULL,
	price    VARCHAR NOT NULL,
	volume   BIGINT NOT NULL,
	exchange VARCHAR NOT NULL,
	ts       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ticks_symbol_ts ON ticks(symbol, ts);

CREATE TABLE IF NOT EXISTS orders (
	order_id          VARCHAR PRIMARY KEY,
	symbol            VARCHAR NOT NULL,
	side              VARCHAR NOT NULL,
	order_type        VARCHAR NOT NULL,
	quantity          BIGINT NOT NULL,
	price             VARCHAR NOT NULL,
	ceiling_price     VARCHAR NOT NULL,
	floor_price       VARCHAR NOT NULL,
	status            VARCHAR NOT NULL,
	filled_quantity   BIGINT NOT NULL,
	avg_fill_price    VARCHAR NOT NULL,
	broker_order_id   VARCHAR,
	rejection_reason  VARCHAR,
	idempotency_key   VARCHAR NOT NULL,
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_idempotency_key ON orders(idempotency_key);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	key        VARCHAR PRIMARY KEY,
	result_json VARCHAR NOT NULL,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_idempotency_keys_expires_at ON idempotency_keys(expires_at);
`

// Store is a DuckDB-backed implementation of ports.TickStore, ports.OrderStore,
// and ports.IdempotencyStore sharing one *sql.DB, with every call admitted
// through a semaphore-backed connection pool of maxConcurrent slots. The pool
// caps how many calls run at once; it does not serialize writers.
type Store struct {
	db   *sql.DB
	pool *resilience.ConnectionPool
}

// Open connects to path (use ":memory:" for an ephemeral in-test database)
// and applies the schema.
func Open(path string, maxConcurrent int) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open duckdb: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	return &Store{db: db, pool: resilience.NewConnectionPool(maxConcurrent)}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InsertBatch persists a batch of ticks inside a single transaction.
func (s *Store) InsertBatch(ctx context.Context, ticks []domain.Tick) error {
	return s.pool.Do(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("storage: begin tick batch tx: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO ticks (symbol, price, volume, exchange, ts) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("storage: prepare tick insert: %w", err)
		}
		defer stmt.Close()

		for _, tick := range ticks {
			if _, err := stmt.ExecContext(ctx, string(tick.Symbol), tick.Price.String(), tick.Volume, string(tick.Exchange), tick.Timestamp); err != nil {
				tx.Rollback()
				return fmt.Errorf("storage: insert tick: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("storage: commit tick batch: %w", err)
		}
		return nil
	})
}

// QueryVolumeSpikes returns symbols whose latest volume exceeds
// thresholdMultiplier times their trailing 20-tick average.
func (s *Store) QueryVolumeSpikes(ctx context.Context, thresholdMultiplier decimal.Decimal) ([]vo.Symbol, error) {
	var symbols []vo.Symbol

	err := s.pool.Do(ctx, func(ctx context.Context) error {
		const query = `
			WITH ranked AS (
				SELECT symbol, volume, ts,
					ROW_NUMBER() OVER (PARTITION BY symbol ORDER BY ts DESC) AS rn,
					AVG(volume) OVER (PARTITION BY symbol ORDER BY ts DESC ROWS BETWEEN 1 FOLLOWING AND 20 FOLLOWING) AS avg_volume
				FROM ticks
			)
			SELECT symbol FROM ranked WHERE rn = 1 AND avg_volume > 0 AND volume > avg_volume * ?
		`
		rows, err := s.db.QueryContext(ctx, query, thresholdMultiplier.InexactFloat64())
		if err != nil {
			return fmt.Errorf("storage: query volume spikes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var symbol string
			if err := rows.Scan(&symbol); err != nil {
				return fmt.Errorf("storage: scan volume spike row: %w", err)
			}
			symbols = append(symbols, vo.Symbol(symbol))
		}
		return rows.Err()
	})

	return symbols, err
}

// OHLCV returns the trailing `lookback` closing prices for symbol, oldest
// first, aggregated per calendar day from raw ticks.
func (s *Store) OHLCV(ctx context.Context, symbol vo.Symbol, lookback int) ([]ports.Bar, error) {
	var bars []ports.Bar

	err := s.pool.Do(ctx, func(ctx context.Context) error {
		const query = `
			SELECT
				MIN(price)  AS low,
				MAX(price)  AS high,
				FIRST(price ORDER BY ts) AS open,
				LAST(price ORDER BY ts)  AS close,
				SUM(volume) AS volume,
				DATE_TRUNC('day', ts) AS day,
				LAST(exchange ORDER BY ts) AS exchange
			FROM ticks
			WHERE symbol = ?
			GROUP BY day
			ORDER BY day DESC
			LIMIT ?
		`
		rows, err := s.db.QueryContext(ctx, query, string(symbol), lookback)
		if err != nil {
			return fmt.Errorf("storage: query ohlcv: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var low, high, open, closePrice, exchange string
			var volume int64
			var day time.Time
			if err := rows.Scan(&low, &high, &open, &closePrice, &volume, &day, &exchange); err != nil {
				return fmt.Errorf("storage: scan ohlcv row: %w", err)
			}

			lowP, _ := vo.NewPriceFromString(low)
			highP, _ := vo.NewPriceFromString(high)
			openP, _ := vo.NewPriceFromString(open)
			closeP, _ := vo.NewPriceFromString(closePrice)

			bars = append(bars, ports.Bar{Open: openP, High: highP, Low: lowP, Close: closeP, Volume: volume, Timestamp: day, Exchange: vo.Exchange(exchange)})
		}

		// Rows arrive newest-first; callers (the technical agent) expect
		// oldest-first so SMA/EMA windows read chronologically.
		for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
			bars[i], bars[j] = bars[j], bars[i]
		}

		return rows.Err()
	})

	return bars, err
}

// Insert persists a newly created order.
func (s *Store) Insert(ctx context.Context, o domain.Order) error {
	return s.pool.Do(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO orders (order_id, symbol, side, order_type, quantity, price, ceiling_price, floor_price,
				status, filled_quantity, avg_fill_price, broker_order_id, rejection_reason, idempotency_key, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, o.OrderID, string(o.Symbol), string(o.Side), string(o.Type), int64(o.Quantity), o.Price.String(),
			o.CeilingPrice.String(), o.FloorPrice.String(), string(o.Status), int64(o.FilledQuantity), o.AvgFillPrice.String(),
			o.BrokerOrderID, o.RejectionReason, o.IdempotencyKey, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("storage: insert order: %w", err)
		}
		return nil
	})
}

// Update overwrites an order's mutable fields after a status transition.
func (s *Store) Update(ctx context.Context, o domain.Order) error {
	return s.pool.Do(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE orders SET status = ?, filled_quantity = ?, avg_fill_price = ?, broker_order_id = ?,
				rejection_reason = ?, updated_at = ?
			WHERE order_id = ?
		`, string(o.Status), int64(o.FilledQuantity), o.AvgFillPrice.String(), o.BrokerOrderID, o.RejectionReason, o.UpdatedAt, o.OrderID)
		if err != nil {
			return fmt.Errorf("storage: update order: %w", err)
		}
		return nil
	})
}

// Get looks up a single order by id.
func (s *Store) Get(ctx context.Context, orderID string) (domain.Order, bool, error) {
	var o domain.Order
	var found bool

	err := s.pool.Do(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `SELECT * FROM orders WHERE order_id = ?`, orderID)
		order, err := scanOrder(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("storage: get order: %w", err)
		}
		o, found = order, true
		return nil
	})

	return o, found, err
}

// OpenOrders returns every order in a non-terminal status.
func (s *Store) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order

	err := s.pool.Do(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT * FROM orders WHERE status NOT IN ('MATCHED', 'REJECTED', 'BROKER_REJECTED', 'CANCELLED')
		`)
		if err != nil {
			return fmt.Errorf("storage: query open orders: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return fmt.Errorf("storage: scan open order: %w", err)
			}
			orders = append(orders, o)
		}
		return rows.Err()
	})

	return orders, err
}

// rowScanner abstracts over *sql.Row and *sql.Rows, both of which expose Scan.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(r rowScanner) (domain.Order, error) {
	var o domain.Order
	var quantity, filledQuantity int64
	var price, ceilingPrice, floorPrice, avgFillPrice string
	var brokerOrderID, rejectionReason sql.NullString

	err := r.Scan(
		&o.OrderID, &o.Symbol, &o.Side, &o.Type, &quantity, &price, &ceilingPrice, &floorPrice,
		&o.Status, &filledQuantity, &avgFillPrice, &brokerOrderID, &rejectionReason, &o.IdempotencyKey,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Quantity = vo.Quantity(quantity)
	o.FilledQuantity = vo.Quantity(filledQuantity)
	o.Price, _ = vo.NewPriceFromString(price)
	o.CeilingPrice, _ = vo.NewPriceFromString(ceilingPrice)
	o.FloorPrice, _ = vo.NewPriceFromString(floorPrice)
	o.AvgFillPrice, _ = vo.NewPriceFromString(avgFillPrice)
	if brokerOrderID.Valid {
		o.BrokerOrderID = &brokerOrderID.String
	}
	if rejectionReason.Valid {
		o.RejectionReason = rejectionReason.String
	}

	return o, nil
}

// Check looks up a cached idempotency result by key.
func (s *Store) Check(ctx context.Context, key string) (domain.IdempotencyRecord, bool, error) {
	var rec domain.IdempotencyRecord
	var found bool

	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var resultJSON string
		row := s.db.QueryRowContext(ctx, `SELECT key, result_json, created_at, expires_at FROM idempotency_keys WHERE key = ?`, key)
		if err := row.Scan(&rec.Key, &resultJSON, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return fmt.Errorf("storage: check idempotency key: %w", err)
		}
		rec.Result = []byte(resultJSON)
		found = true
		return nil
	})

	return rec, found, err
}

// Record upserts an idempotency result: a conflicting key keeps its original
// result rather than being overwritten. This only protects the stored row —
// at-most-once broker submission under concurrent callers with the same key
// is enforced by usecase.PlaceOrder's per-key lock, not by this statement.
func (s *Store) Record(ctx context.Context, rec domain.IdempotencyRecord) error {
	return s.pool.Do(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO idempotency_keys (key, result_json, created_at, expires_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (key) DO NOTHING
		`, rec.Key, string(rec.Result), rec.CreatedAt, rec.ExpiresAt)
		if err != nil {
			return fmt.Errorf("storage: record idempotency key: %w", err)
		}
		return nil
	})
}

// PruneExpired deletes idempotency records past their TTL, returning the
// count removed. Intended to be called by a periodic goroutine in cmd/vnalgo.
func (s *Store) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	var count int

	err := s.pool.Do(ctx, func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at < ?`, now)
		if err != nil {
			return fmt.Errorf("storage: prune expired idempotency keys: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil
		}
		count = int(affected)
		return nil
	})

	if count > 0 {
		log.Info().Int("pruned", count).Msg("🧹 pruned expired idempotency keys")
	}

	return count, err
}

