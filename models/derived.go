package models

// AdjustmentRecord is one downward conversion-price reset parsed from the
// adjustment log table.
type AdjustmentRecord struct {
	MeetingDate   string   `json:"meetingDate"`
	EffectiveDate string   `json:"effectiveDate"`
	NewPrice      *float64 `json:"newPrice"`
	OldPrice      *float64 `json:"oldPrice"`
	BottomPrice   *float64 `json:"bottomPrice"`
	AdjRatio      *float64 `json:"adjRatio"`
	Status        string   `json:"status"`
}

// CashFlowSummary holds the three most recent yearly net profits, in units
// of 100 million.
type CashFlowSummary struct {
	Profits []float64 `json:"profits"`
	Total   float64   `json:"total"`
}

// HistoryRow is one daily entry of a bond's price history payload.
type HistoryRow struct {
	ID   string         `json:"id"`
	Cell map[string]any `json:"cell"`
}

// HistorySummary is the detail fields derived from a history payload.
type HistorySummary struct {
	Info     JSONText
	Rows     int
	MaxPrice *float64
	MaxDate  string
	MinPrice *float64
	MinDate  string
}

// HistoryCandidate joins a bond's current summary figures with its stored
// history for the nightly roll-forward.
type HistoryCandidate struct {
	BondID          string
	Price           *float64
	Sprice          *float64
	Volume          *float64
	YtmRt           *float64
	PremiumRt       *float64
	TurnoverRt      *float64
	CurrIssAmt      *float64
	ConvertValue    *float64
	MarketCd        string
	Btype           string
	MaturityDt      string
	RedeemStatus    string
	IsBlacklisted   bool
	Info            JSONText
	MaxHistoryPrice *float64
	MinHistoryPrice *float64
	MaxPriceDate    string
	MinPriceDate    string
}
