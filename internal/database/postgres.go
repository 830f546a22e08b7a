package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sugawarayuuta/sonnet"

	"dexpnl/internal/config"
	"dexpnl/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pools (
	contract TEXT PRIMARY KEY,
	token0   TEXT NOT NULL,
	token1   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS swap_events (
	id               BIGSERIAL PRIMARY KEY,
	contract         TEXT NOT NULL REFERENCES pools(contract),
	event_name       TEXT NOT NULL DEFAULT 'Swap',
	block            BIGINT NOT NULL,
	block_timestamp  TIMESTAMPTZ NOT NULL,
	transaction_hash TEXT NOT NULL,
	user_address     TEXT NOT NULL,
	amount0          NUMERIC(78, 0) NOT NULL,
	amount1          NUMERIC(78, 0) NOT NULL,
	liquidity        NUMERIC(78, 0)
);
CREATE TABLE IF NOT EXISTS user_performance (
	run_id          TEXT NOT NULL,
	rank            INTEGER NOT NULL,
	user_address    TEXT NOT NULL,
	realized_profit NUMERIC NOT NULL,
	volumes         JSONB NOT NULL,
	buy_count       INTEGER NOT NULL,
	sell_count      INTEGER NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (run_id, user_address)
);`

const loadSwapsSQL = `
SELECT e.transaction_hash, e.user_address, p.token0, p.token1,
       e.amount0::text, e.amount1::text, e.block_timestamp,
       COALESCE(e.liquidity::text, '')
FROM swap_events e
JOIN pools p ON p.contract = e.contract
WHERE e.event_name = 'Swap'
  AND (cardinality($1::text[]) = 0 OR p.token0 || '_' || p.token1 = ANY($1::text[]))
ORDER BY e.block_timestamp, e.block, e.transaction_hash`

const insertPerformanceSQL = `
INSERT INTO user_performance (run_id, rank, user_address, realized_profit, volumes, buy_count, sell_count)
VALUES ($1, $2, $3, $4::text::numeric, $5::text::jsonb, $6, $7)
ON CONFLICT (run_id, user_address) DO UPDATE SET
	rank = EXCLUDED.rank,
	realized_profit = EXCLUDED.realized_profit,
	volumes = EXCLUDED.volumes,
	buy_count = EXCLUDED.buy_count,
	sell_count = EXCLUDED.sell_count`

// PostgresRepository stores swap events and rankings in PostgreSQL.
type PostgresRepository struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Targets []string
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository over an open pool.
func NewPostgresRepository(pool *pgxpool.Pool, logger *slog.Logger, targets []string) *PostgresRepository {
	return &PostgresRepository{Pool: pool, Logger: logger, Targets: targets}
}

// ConnString builds a postgres URL from the database settings.
func ConnString(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.DBName,
	}
	return u.String()
}

// Connect opens a pool and pings it, retrying with exponential backoff until
// maxElapsed. A malformed connection string fails immediately.
func Connect(ctx context.Context, connStr string, maxElapsed time.Duration) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	op := func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	}

	pool, err := backoff.Retry(
		ctx,
		op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// LoadSwaps reads swap events joined with their pool's token symbols.
func (r *PostgresRepository) LoadSwaps(ctx context.Context) ([]model.SwapTransaction, error) {
	targets := r.Targets
	if targets == nil {
		targets = []string{}
	}

	rows, err := r.Pool.Query(ctx, loadSwapsSQL, targets)
	if err != nil {
		return nil, fmt.Errorf("querying swap events: %w", err)
	}
	defer rows.Close()

	var out []model.SwapTransaction
	for rows.Next() {
		var (
			tx         model.SwapTransaction
			raw0, raw1 string
		)
		if err := rows.Scan(&tx.TxHash, &tx.UserAddress, &tx.Token0, &tx.Token1, &raw0, &raw1, &tx.Timestamp, &tx.PoolLiquidity); err != nil {
			return nil, fmt.Errorf("scanning swap event: %w", err)
		}
		var ok bool
		if tx.Amount0, ok = new(big.Int).SetString(raw0, 10); !ok {
			return nil, fmt.Errorf("swap %s: invalid amount0 %q", tx.TxHash, raw0)
		}
		if tx.Amount1, ok = new(big.Int).SetString(raw1, 10); !ok {
			return nil, fmt.Errorf("swap %s: invalid amount1 %q", tx.TxHash, raw1)
		}
		tx.Pool = tx.Token0 + "_" + tx.Token1
		tx.Timestamp = tx.Timestamp.UTC()
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading swap events: %w", err)
	}

	if r.Logger != nil {
		r.Logger.Info("Loaded swap events from database", "swaps", len(out))
	}
	return out, nil
}

// SavePerformance writes a ranking under runID; rank is the 1-based position in perfs.
func (r *PostgresRepository) SavePerformance(ctx context.Context, runID string, perfs []model.UserPerformance) error {
	batch := &pgx.Batch{}
	for i, p := range perfs {
		volumes, err := sonnet.Marshal(p.Volumes)
		if err != nil {
			return fmt.Errorf("encoding volumes for %s: %w", p.UserAddress, err)
		}
		batch.Queue(insertPerformanceSQL,
			runID, i+1, p.UserAddress, p.RealizedProfit.String(), string(volumes), p.BuyCount, p.SellCount)
	}

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving performance: %w", err)
	}
	return tx.Commit(ctx)
}
