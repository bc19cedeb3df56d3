package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger keeps the processed-order set in a table instead of a
// local file, for deployments where the job runs on more than one host.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS processed_orders (
	order_id    text PRIMARY KEY,
	recorded_at timestamptz NOT NULL DEFAULT now()
)`

// OpenPostgres connects to the database at dsn, verifies the connection
// and ensures the processed_orders table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresLedger, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ledger: connect: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ensure schema: %w", err)
	}
	return &PostgresLedger{pool: pool}, nil
}

func (l *PostgresLedger) Contains(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_orders WHERE order_id = $1)`,
		orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ledger: contains %s: %w", orderID, err)
	}
	return exists, nil
}

func (l *PostgresLedger) Record(ctx context.Context, orderID string) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO processed_orders (order_id) VALUES ($1) ON CONFLICT (order_id) DO NOTHING`,
		orderID)
	if err != nil {
		return fmt.Errorf("ledger: record %s: %w", orderID, err)
	}
	return nil
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

// AllIDs returns every recorded order ID in recording order. Used by the
// CLI ledger inspection commands.
func (l *PostgresLedger) AllIDs(ctx context.Context) ([]string, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT order_id FROM processed_orders ORDER BY recorded_at`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Pool exposes the underlying pool for health checks.
func (l *PostgresLedger) Pool() *pgxpool.Pool {
	return l.pool
}
