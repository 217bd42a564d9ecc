package models

import "time"

// IndexMetricsID is the fixed key of the bound_index singleton row.
const IndexMetricsID = 1

// IndexMetrics are the four figures from the list page's rolling index widget.
type IndexMetrics struct {
	BondIndex         *float64  `json:"bond_index" db:"bond_index"`
	MedianPrice       *float64  `json:"median_price" db:"median_price"`
	MedianPremiumRate *float64  `json:"median_premium_rate" db:"median_premium_rate"`
	YieldToMaturity   *float64  `json:"yield_to_maturity" db:"yield_to_maturity"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

type IndexHistoryPoint struct {
	PriceDate time.Time `json:"price_dt" db:"price_dt"`
	MidPrice  *float64  `json:"mid_price" db:"mid_price"`
}

func (p IndexHistoryPoint) Valid() bool {
	return !p.PriceDate.IsZero() && p.MidPrice != nil
}
