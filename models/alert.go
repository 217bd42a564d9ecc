package models

// AlertRow is a summary row joined with its strategy, as read by the monitor.
type AlertRow struct {
	BondID           string   `json:"bond_id" db:"bond_id"`
	BondName         string   `json:"bond_nm" db:"bond_nm"`
	Price            *float64 `json:"price" db:"price"`
	IncreaseRt       *float64 `json:"increase_rt" db:"increase_rt"`
	RedeemStatus     string   `json:"redeem_status" db:"redeem_status"`
	TargetPrice      *float64 `json:"target_price" db:"target_price"`
	TargetHeavyPrice *float64 `json:"target_heavy_price" db:"target_heavy_price"`
	SellPrice        *float64 `json:"sell_price" db:"sell_price"`
	IsFavorite       bool     `json:"is_favorite" db:"is_favorite"`
	IsBlacklisted    bool     `json:"is_blacklisted" db:"is_blacklisted"`
	Level            *int64   `json:"level" db:"level"`
	ProfitStrategy   string   `json:"profit_strategy" db:"profit_strategy"`
}

// Thresholds configures the price-change magnitude that makes a row qualify.
type Thresholds struct {
	Rise float64
	Fall float64
}
