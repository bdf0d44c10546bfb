package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"grocery-fleet/internal/connections/database"
	"grocery-fleet/internal/domain"
)

const table = "order_metrics"

const migration = `
CREATE TABLE IF NOT EXISTS order_metrics (
  id               BIGSERIAL PRIMARY KEY,
  order_id         TEXT             NOT NULL,
  status           TEXT             NOT NULL,
  duration_seconds DOUBLE PRECISION NOT NULL,
  ts               BIGINT           NOT NULL,
  received_at      TIMESTAMPTZ      NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS order_metrics_order_id_idx ON order_metrics (order_id);
`

// PostgresStore appends records to the order_metrics table. Row ids give the
// append order.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := database.Connect(ctx, dsn)
	if err != nil {
		return nil, &domain.StoreWriteError{Path: table, Err: err}
	}
	if _, err := pool.Exec(ctx, migration); err != nil {
		pool.Close()
		return nil, &domain.StoreWriteError{Path: table, Err: fmt.Errorf("migrate: %w", err)}
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Append(ctx context.Context, e domain.MetricEvent) error {
	_, err := s.pool.Exec(context.WithoutCancel(ctx), `
INSERT INTO order_metrics (order_id, status, duration_seconds, ts)
VALUES ($1,$2,$3,$4)
`, e.OrderID, e.Status, e.DurationSeconds, e.Timestamp)
	if err != nil {
		return &domain.StoreWriteError{Path: table, Err: err}
	}
	return nil
}

func (s *PostgresStore) Records(ctx context.Context, orderID string) ([]domain.MetricEvent, error) {
	rows, err := s.pool.Query(ctx, `
SELECT order_id, status, duration_seconds, ts
FROM order_metrics
WHERE $1 = '' OR order_id = $1
ORDER BY id ASC
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MetricEvent
	for rows.Next() {
		var e domain.MetricEvent
		if err := rows.Scan(&e.OrderID, &e.Status, &e.DurationSeconds, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &domain.StoreWriteError{Path: table, Err: err}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
