package storage

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"kzz_crawler/models"
)

const (
	redeemAnnounced = "已公告强赎"
	queryAttempts   = 3
)

var redeemScheduled = regexp.MustCompile(`强赎\s(\d{4}-\d{2}-\d{2})最后交易`)

// RedeemPending reports whether a forced redemption has been announced or
// scheduled for the bond.
func RedeemPending(status string) bool {
	return status == redeemAnnounced || redeemScheduled.MatchString(status)
}

// Qualifies applies the checks that stay outside SQL: pending redemption,
// favorites only, no blacklisted bonds.
func Qualifies(r models.AlertRow) bool {
	if RedeemPending(r.RedeemStatus) {
		return false
	}
	return r.IsFavorite && !r.IsBlacklisted
}

const qualifyingQuery = `
	SELECT
		s.bond_id,
		COALESCE(s.bond_nm, ''),
		s.price::float8,
		s.increase_rt::float8,
		COALESCE(s.redeem_status, ''),
		bs.target_price::float8,
		bs.target_heavy_price::float8,
		bs.sell_price::float8,
		COALESCE(bs.is_favorite, 0) = 1,
		COALESCE(bs.is_blacklisted, 0) = 1,
		bs.level,
		COALESCE(bs.profit_strategy, '')
	FROM summary s
	JOIN bond_strategies bs ON s.bond_id = bs.bond_id
	WHERE (
		(bs.target_price IS NOT NULL AND s.price <= bs.target_price) OR
		(bs.target_heavy_price IS NOT NULL AND s.price <= bs.target_heavy_price) OR
		(bs.sell_price IS NOT NULL AND s.price >= bs.sell_price) OR
		(bs.target_price IS NOT NULL AND (s.increase_rt >= $1 OR s.increase_rt <= $2))
	)
	AND s.market_cd IS DISTINCT FROM 'sb'
	AND s.btype IS DISTINCT FROM 'E'
	AND NULLIF(s.maturity_dt, '')::date > CURRENT_DATE
	ORDER BY s.bond_id`

// QualifyingBonds returns the bonds whose price crossed a strategy threshold.
// The read is retried with linear backoff.
func (s *PostgresStore) QualifyingBonds(ctx context.Context, th models.Thresholds) ([]models.AlertRow, error) {
	var lastErr error
	for attempt := 1; attempt <= queryAttempts; attempt++ {
		rows, err := s.queryQualifying(ctx, th)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		log.Printf("[storage] qualifying query failed (attempt %d/%d): %v", attempt, queryAttempts, err)
		if attempt == queryAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, fmt.Errorf("qualifying bonds: %w", lastErr)
}

func (s *PostgresStore) queryQualifying(ctx context.Context, th models.Thresholds) ([]models.AlertRow, error) {
	rows, err := s.pool.Query(ctx, qualifyingQuery, th.Rise, th.Fall)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AlertRow
	for rows.Next() {
		var r models.AlertRow
		if err := rows.Scan(&r.BondID, &r.BondName, &r.Price, &r.IncreaseRt, &r.RedeemStatus,
			&r.TargetPrice, &r.TargetHeavyPrice, &r.SellPrice,
			&r.IsFavorite, &r.IsBlacklisted, &r.Level, &r.ProfitStrategy); err != nil {
			return nil, err
		}
		if Qualifies(r) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}
