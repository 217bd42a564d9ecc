package models

import "time"

// DetailRecord is the sparse per-bond row in bond_cells. Only Set fields are
// written on upsert.
type DetailRecord struct {
	BondID string `json:"bond_id" db:"-"`

	Info            Opt[JSONText]  `json:"info" db:"info"`
	MaxHistoryPrice Opt[float64]   `json:"max_history_price" db:"max_history_price"`
	MinHistoryPrice Opt[float64]   `json:"min_history_price" db:"min_history_price"`
	MaxPriceDate    Opt[string]    `json:"max_price_date" db:"max_price_date"`
	MinPriceDate    Opt[string]    `json:"min_price_date" db:"min_price_date"`
	Industry        Opt[string]    `json:"industry" db:"industry"`
	Concept         Opt[JSONText]  `json:"concept" db:"concept"`
	AdjLogs         Opt[string]    `json:"adj_logs" db:"adj_logs"`
	AdjRecords      Opt[JSONText]  `json:"adj_records" db:"adj_records"`
	UnadjLogs       Opt[string]    `json:"unadj_logs" db:"unadj_logs"`
	AdjustTC        Opt[string]    `json:"adjust_tc" db:"adjust_tc"`
	CashFlowData    Opt[string]    `json:"cash_flow_data" db:"cash_flow_data"`
	CashFlowSummary Opt[JSONText]  `json:"cash_flow_summary" db:"cash_flow_summary"`
	AssetData       Opt[JSONText]  `json:"asset_data" db:"asset_data"`
	DebtData        Opt[JSONText]  `json:"debt_data" db:"debt_data"`
	LtBps           Opt[float64]   `json:"lt_bps" db:"lt_bps"`
	UpdateTime      Opt[time.Time] `json:"update_time" db:"update_time"`
}

var DetailFields = NewFieldTable(DetailRecord{})

// DetailKey addresses a detail row either by bond id or by the underlying
// stock name, which is resolved through the summary table.
type DetailKey struct {
	BondID    string
	StockName string
}

// ConceptTag is one entry of the concept list shown on the detail page.
type ConceptTag struct {
	Name string `json:"name"`
	Link string `json:"link"`
}
