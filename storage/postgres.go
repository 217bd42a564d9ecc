package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kzz_crawler/models"
)

var (
	ErrNoBondID     = errors.New("storage: no bond id to upsert")
	ErrUnknownStock = errors.New("storage: no summary row for stock name")
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = maxConns
	config.MinConns = minConns
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Summary
// =============================================================================

type UpsertStats struct {
	Upserted int
	Failed   int
}

// UpsertSummary writes each row independently; a failing row is logged and
// counted without affecting the rest.
func (s *PostgresStore) UpsertSummary(ctx context.Context, rows []models.SummaryRecord) UpsertStats {
	var stats UpsertStats
	for i := range rows {
		if err := s.upsertSummaryRow(ctx, &rows[i]); err != nil {
			log.Printf("[storage] summary %s: %v", rows[i].BondID, err)
			stats.Failed++
			continue
		}
		stats.Upserted++
	}
	return stats
}

func (s *PostgresStore) upsertSummaryRow(ctx context.Context, rec *models.SummaryRecord) error {
	if rec.BondID == "" {
		return ErrNoBondID
	}
	cols, vals := models.SummaryFields.Present(rec)
	stmt := buildUpsert("summary", "bond_id", rec.BondID, cols, vals, SummaryNullPolicy, "updated_at")
	_, err := s.pool.Exec(ctx, stmt.SQL, stmt.Args...)
	return err
}

// =============================================================================
// Detail (bond_cells)
// =============================================================================

// UpsertDetail merges the supplied fields of rec into the detail row and
// returns the affected row count and the resolved bond id.
func (s *PostgresStore) UpsertDetail(ctx context.Context, key models.DetailKey, rec *models.DetailRecord) (int64, string, error) {
	id := key.BondID
	if id == "" && key.StockName != "" {
		resolved, err := s.ResolveBondID(ctx, key.StockName)
		if err != nil {
			return 0, "", err
		}
		id = resolved
	}
	if id == "" {
		return 0, "", ErrNoBondID
	}

	cols, vals := models.DetailFields.Present(rec)
	stmt := buildUpsert("bond_cells", "bond_id", id, cols, vals, DetailNullPolicy, "")
	tag, err := s.pool.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, id, fmt.Errorf("upsert detail %s: %w", id, err)
	}
	return tag.RowsAffected(), id, nil
}

func (s *PostgresStore) ResolveBondID(ctx context.Context, stockName string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT bond_id FROM summary WHERE stock_nm = $1 ORDER BY bond_id LIMIT 1`, stockName).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", fmt.Errorf("%w: %s", ErrUnknownStock, stockName)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// =============================================================================
// Strategy
// =============================================================================

func (s *PostgresStore) UpsertStrategy(ctx context.Context, rec *models.StrategyRecord) (int64, error) {
	if rec.BondID == "" {
		return 0, ErrNoBondID
	}
	cols, vals := models.StrategyFields.Present(rec)
	stmt := buildUpsert("bond_strategies", "bond_id", rec.BondID, cols, vals, DetailNullPolicy, "")
	tag, err := s.pool.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("upsert strategy %s: %w", rec.BondID, err)
	}
	return tag.RowsAffected(), nil
}

// =============================================================================
// Index metrics
// =============================================================================

func (s *PostgresStore) UpsertIndexMetrics(ctx context.Context, m *models.IndexMetrics) error {
	query := `
		INSERT INTO bound_index (id, bond_index, median_price, median_premium_rate, yield_to_maturity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			bond_index = EXCLUDED.bond_index,
			median_price = EXCLUDED.median_price,
			median_premium_rate = EXCLUDED.median_premium_rate,
			yield_to_maturity = EXCLUDED.yield_to_maturity,
			created_at = EXCLUDED.created_at`

	_, err := s.pool.Exec(ctx, query, models.IndexMetricsID,
		m.BondIndex, m.MedianPrice, m.MedianPremiumRate, m.YieldToMaturity, m.CreatedAt)
	return err
}

// IndexMetrics returns nil, nil before the first capture.
func (s *PostgresStore) IndexMetrics(ctx context.Context) (*models.IndexMetrics, error) {
	var m models.IndexMetrics
	err := s.pool.QueryRow(ctx, `
		SELECT bond_index::float8, median_price::float8, median_premium_rate::float8,
			yield_to_maturity::float8, created_at
		FROM bound_index WHERE id = $1`, models.IndexMetricsID).
		Scan(&m.BondIndex, &m.MedianPrice, &m.MedianPremiumRate, &m.YieldToMaturity, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertIndexHistory writes the batch in one transaction. Points without a
// date or price are skipped; any failed insert rolls back the whole batch.
func (s *PostgresStore) UpsertIndexHistory(ctx context.Context, points []models.IndexHistoryPoint) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	written := 0
	for _, p := range points {
		if !p.Valid() {
			log.Printf("[storage] skipping index history point %+v", p)
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO index_history (price_dt, mid_price, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW())
			ON CONFLICT (price_dt) DO UPDATE SET
				mid_price = EXCLUDED.mid_price,
				updated_at = NOW()`,
			p.PriceDate, *p.MidPrice)
		if err != nil {
			return 0, fmt.Errorf("index history %s: %w", p.PriceDate.Format("2006-01-02"), err)
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// =============================================================================
// Reconciliation
// =============================================================================

// PruneMissing deletes summary and detail rows whose id is not in ids. An
// empty id set deletes nothing.
func (s *PostgresStore) PruneMissing(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		log.Printf("[storage] prune skipped: empty id set")
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, table := range []string{"bond_cells", "summary"} {
		tag, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE NOT (bond_id = ANY($1))`, pgx.Identifier{table}.Sanitize()), ids)
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
		total += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}
