package storage

import (
	"context"

	"kzz_crawler/models"
)

// HistoryCandidates returns bonds with stored price history together with
// their current summary figures, for the nightly roll-forward.
func (s *PostgresStore) HistoryCandidates(ctx context.Context) ([]models.HistoryCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			s.bond_id,
			s.price::float8, s.sprice::float8, s.volume::float8, s.ytm_rt::float8,
			s.premium_rt::float8, s.turnover_rt::float8, s.curr_iss_amt::float8, s.convert_value::float8,
			COALESCE(s.market_cd, ''), COALESCE(s.btype, ''), COALESCE(s.maturity_dt::text, ''),
			COALESCE(s.redeem_status, ''),
			COALESCE(bs.is_blacklisted, 0) = 1,
			bc.info::text,
			bc.max_history_price::float8, bc.min_history_price::float8,
			COALESCE(bc.max_price_date::text, ''), COALESCE(bc.min_price_date::text, '')
		FROM summary s
		JOIN bond_cells bc ON bc.bond_id = s.bond_id
		LEFT JOIN bond_strategies bs ON bs.bond_id = s.bond_id
		WHERE bc.info IS NOT NULL
		ORDER BY s.bond_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HistoryCandidate
	for rows.Next() {
		var c models.HistoryCandidate
		var info string
		if err := rows.Scan(&c.BondID,
			&c.Price, &c.Sprice, &c.Volume, &c.YtmRt,
			&c.PremiumRt, &c.TurnoverRt, &c.CurrIssAmt, &c.ConvertValue,
			&c.MarketCd, &c.Btype, &c.MaturityDt, &c.RedeemStatus, &c.IsBlacklisted,
			&info, &c.MaxHistoryPrice, &c.MinHistoryPrice, &c.MaxPriceDate, &c.MinPriceDate); err != nil {
			return nil, err
		}
		c.Info = models.JSONText(info)
		out = append(out, c)
	}
	return out, rows.Err()
}
