package models

// StrategyRecord holds the operator-maintained thresholds for a bond.
type StrategyRecord struct {
	BondID string `json:"bond_id" db:"-"`

	TargetPrice      Opt[float64]  `json:"target_price" db:"target_price"`
	TargetHeavyPrice Opt[float64]  `json:"target_heavy_price" db:"target_heavy_price"`
	SellPrice        Opt[float64]  `json:"sell_price" db:"sell_price"`
	Level            Opt[int64]    `json:"level" db:"level"`
	ProfitStrategy   Opt[string]   `json:"profit_strategy" db:"profit_strategy"`
	IsStateOwned     Opt[int64]    `json:"is_state_owned" db:"is_state_owned"`
	IsFavorite       Opt[int64]    `json:"is_favorite" db:"is_favorite"`
	IsBlacklisted    Opt[int64]    `json:"is_blacklisted" db:"is_blacklisted"`
	IsAnalyzed       Opt[int64]    `json:"is_analyzed" db:"is_analyzed"`
	FinanceData      Opt[JSONText] `json:"finance_data" db:"finance_data"`
}

var StrategyFields = NewFieldTable(StrategyRecord{})

// SafetyLevel labels the level column.
func SafetyLevel(level int64) string {
	switch level {
	case 2:
		return "绝对安全"
	case 1:
		return "相对安全"
	case 0:
		return "不安全"
	}
	return ""
}
