package models

import "time"

// SummaryRecord is one row of the list payload. Every column is an Opt so a
// missing key stays untouched while an explicit null overwrites.
type SummaryRecord struct {
	BondID string `json:"bond_id" db:"-"`

	BondNm               Opt[string]   `json:"bond_nm" db:"bond_nm"`
	BondPy               Opt[string]   `json:"bond_py" db:"bond_py"`
	Price                Opt[float64]  `json:"price" db:"price"`
	IncreaseRt           Opt[float64]  `json:"increase_rt" db:"increase_rt"`
	Last5dRt             Opt[float64]  `json:"last_5d_rt" db:"last_5d_rt"`
	Last20dRt            Opt[float64]  `json:"last_20d_rt" db:"last_20d_rt"`
	Last3mRt             Opt[float64]  `json:"last_3m_rt" db:"last_3m_rt"`
	Last1yRt             Opt[float64]  `json:"last_1y_rt" db:"last_1y_rt"`
	StockID              Opt[string]   `json:"stock_id" db:"stock_id"`
	StockNm              Opt[string]   `json:"stock_nm" db:"stock_nm"`
	StockPy              Opt[string]   `json:"stock_py" db:"stock_py"`
	Sprice               Opt[float64]  `json:"sprice" db:"sprice"`
	SincreaseRt          Opt[float64]  `json:"sincrease_rt" db:"sincrease_rt"`
	PB                   Opt[float64]  `json:"pb" db:"pb"`
	PE                   Opt[float64]  `json:"pe" db:"pe"`
	ROE                  Opt[float64]  `json:"roe" db:"roe"`
	DividendRate         Opt[float64]  `json:"dividend_rate" db:"dividend_rate"`
	PETemperature        Opt[float64]  `json:"pe_temperature" db:"pe_temperature"`
	PBTemperature        Opt[float64]  `json:"pb_temperature" db:"pb_temperature"`
	IntDebtRate          Opt[float64]  `json:"int_debt_rate" db:"int_debt_rate"`
	PledgeRt             Opt[float64]  `json:"pledge_rt" db:"pledge_rt"`
	MarketValue          Opt[float64]  `json:"market_value" db:"market_value"`
	Revenue              Opt[float64]  `json:"revenue" db:"revenue"`
	RevenueGrowth        Opt[float64]  `json:"revenue_growth" db:"revenue_growth"`
	Profit               Opt[float64]  `json:"profit" db:"profit"`
	ProfitGrowth         Opt[float64]  `json:"profit_growth" db:"profit_growth"`
	ConvertPrice         Opt[float64]  `json:"convert_price" db:"convert_price"`
	ConvertValue         Opt[float64]  `json:"convert_value" db:"convert_value"`
	ConvertDt            Opt[string]   `json:"convert_dt" db:"convert_dt"`
	PremiumRt            Opt[float64]  `json:"premium_rt" db:"premium_rt"`
	BondPremiumRt        Opt[float64]  `json:"bond_premium_rt" db:"bond_premium_rt"`
	Dblow                Opt[float64]  `json:"dblow" db:"dblow"`
	AdjustCondition      Opt[string]   `json:"adjust_condition" db:"adjust_condition"`
	SWNmR                Opt[string]   `json:"sw_nm_r" db:"sw_nm_r"`
	SWCd                 Opt[string]   `json:"sw_cd" db:"sw_cd"`
	MarketCd             Opt[string]   `json:"market_cd" db:"market_cd"`
	Btype                Opt[string]   `json:"btype" db:"btype"`
	ListDt               Opt[string]   `json:"list_dt" db:"list_dt"`
	TFlag                Opt[JSONText] `json:"t_flag" db:"t_flag"`
	Owned                Opt[int64]    `json:"owned" db:"owned"`
	Hold                 Opt[int64]    `json:"hold" db:"hold"`
	BondValue            Opt[float64]  `json:"bond_value" db:"bond_value"`
	RatingCd             Opt[string]   `json:"rating_cd" db:"rating_cd"`
	OptionValue          Opt[float64]  `json:"option_value" db:"option_value"`
	VolatilityRate       Opt[float64]  `json:"volatility_rate" db:"volatility_rate"`
	PutConvertPrice      Opt[float64]  `json:"put_convert_price" db:"put_convert_price"`
	ForceRedeemPrice     Opt[float64]  `json:"force_redeem_price" db:"force_redeem_price"`
	ConvertAmtRatio      Opt[float64]  `json:"convert_amt_ratio" db:"convert_amt_ratio"`
	ConvertAmtRatio2     Opt[float64]  `json:"convert_amt_ratio2" db:"convert_amt_ratio2"`
	FundRt               Opt[float64]  `json:"fund_rt" db:"fund_rt"`
	MaturityDt           Opt[string]   `json:"maturity_dt" db:"maturity_dt"`
	YearLeft             Opt[float64]  `json:"year_left" db:"year_left"`
	CurrIssAmt           Opt[float64]  `json:"curr_iss_amt" db:"curr_iss_amt"`
	Volume               Opt[float64]  `json:"volume" db:"volume"`
	Svolume              Opt[float64]  `json:"svolume" db:"svolume"`
	TurnoverRt           Opt[float64]  `json:"turnover_rt" db:"turnover_rt"`
	YTMRt                Opt[float64]  `json:"ytm_rt" db:"ytm_rt"`
	YTMRtTax             Opt[float64]  `json:"ytm_rt_tax" db:"ytm_rt_tax"`
	PutYTMRt             Opt[float64]  `json:"put_ytm_rt" db:"put_ytm_rt"`
	Notes                Opt[string]   `json:"notes" db:"notes"`
	PctRpt               Opt[string]   `json:"pct_rpt" db:"pct_rpt"`
	TotalMarketValue     Opt[float64]  `json:"total_market_value" db:"total_market_value"`
	RedeemPriceTotal     Opt[float64]  `json:"redeem_price_total" db:"redeem_price_total"`
	RedeemStatus         Opt[string]   `json:"redeem_status" db:"redeem_status"`
	Province             Opt[string]   `json:"province" db:"province"`
	SturnoverRt          Opt[float64]  `json:"sturnover_rt" db:"sturnover_rt"`
	Slast5dRt            Opt[float64]  `json:"slast_5d_rt" db:"slast_5d_rt"`
	Slast20dRt           Opt[float64]  `json:"slast_20d_rt" db:"slast_20d_rt"`
	Slast3mRt            Opt[float64]  `json:"slast_3m_rt" db:"slast_3m_rt"`
	Slast1yRt            Opt[float64]  `json:"slast_1y_rt" db:"slast_1y_rt"`
	BondStdevry          Opt[float64]  `json:"bond_stdevry" db:"bond_stdevry"`
	BondMD               Opt[float64]  `json:"bond_md" db:"bond_md"`
	BondBias20           Opt[float64]  `json:"bond_bias20" db:"bond_bias20"`
	StockBias20          Opt[float64]  `json:"stock_bias20" db:"stock_bias20"`
	FloatIssAmt          Opt[float64]  `json:"float_iss_amt" db:"float_iss_amt"`
	FloatIssValue        Opt[float64]  `json:"float_iss_value" db:"float_iss_value"`
	TotalCashValue       Opt[float64]  `json:"total_cash_value" db:"total_cash_value"`
	Last6mRt             Opt[float64]  `json:"last_6m_rt" db:"last_6m_rt"`
	Slast6mRt            Opt[float64]  `json:"slast_6m_rt" db:"slast_6m_rt"`
	ThisYRt              Opt[float64]  `json:"this_y_rt" db:"this_y_rt"`
	SthisYRt             Opt[float64]  `json:"sthis_y_rt" db:"sthis_y_rt"`
	Noted                Opt[int64]    `json:"noted" db:"noted"`
	LastTime             Opt[string]   `json:"last_time" db:"last_time"`
	Qstatus              Opt[string]   `json:"qstatus" db:"qstatus"`
	Sqflag               Opt[string]   `json:"sqflag" db:"sqflag"`
	PBFlag               Opt[string]   `json:"pb_flag" db:"pb_flag"`
	AdjCnt               Opt[int64]    `json:"adj_cnt" db:"adj_cnt"`
	AdjScnt              Opt[int64]    `json:"adj_scnt" db:"adj_scnt"`
	ConvertPriceValid    Opt[string]   `json:"convert_price_valid" db:"convert_price_valid"`
	ConvertPriceTips     Opt[string]   `json:"convert_price_tips" db:"convert_price_tips"`
	ConvertCdTip         Opt[string]   `json:"convert_cd_tip" db:"convert_cd_tip"`
	RefYieldInfo         Opt[string]   `json:"ref_yield_info" db:"ref_yield_info"`
	Adjusted             Opt[string]   `json:"adjusted" db:"adjusted"`
	OrigIssAmt           Opt[float64]  `json:"orig_iss_amt" db:"orig_iss_amt"`
	PriceTips            Opt[string]   `json:"price_tips" db:"price_tips"`
	RedeemDt             Opt[string]   `json:"redeem_dt" db:"redeem_dt"`
	RealForceRedeemPrice Opt[float64]  `json:"real_force_redeem_price" db:"real_force_redeem_price"`
	OptionTip            Opt[string]   `json:"option_tip" db:"option_tip"`
	PctChg               Opt[float64]  `json:"pct_chg" db:"pct_chg"`
	AdjustStatus         Opt[string]   `json:"adjust_status" db:"adjust_status"`
	UnadjCnt             Opt[int64]    `json:"unadj_cnt" db:"unadj_cnt"`
	AfterNextPutDt       Opt[string]   `json:"after_next_put_dt" db:"after_next_put_dt"`
	RedeemRemainDays     Opt[int64]    `json:"redeem_remain_days" db:"redeem_remain_days"`
	AdjustRemainDays     Opt[int64]    `json:"adjust_remain_days" db:"adjust_remain_days"`
	AdjustOrders         Opt[int64]    `json:"adjust_orders" db:"adjust_orders"`
	RedeemOrders         Opt[int64]    `json:"redeem_orders" db:"redeem_orders"`
	Icons                Opt[JSONText] `json:"icons" db:"icons"`
	IsMinPrice           Opt[string]   `json:"is_min_price" db:"is_min_price"`
	Blocked              Opt[string]   `json:"blocked" db:"blocked"`
	DebtRate             Opt[float64]  `json:"debt_rate" db:"debt_rate"`
	Putting              Opt[string]   `json:"putting" db:"putting"`
}

// SummaryFields is the fixed column table for the summary table.
var SummaryFields = NewFieldTable(SummaryRecord{})

func (r *SummaryRecord) Matured(today time.Time) bool {
	dt, ok := r.MaturityDt.Get()
	if !ok || dt == "" {
		return false
	}
	return dt < today.Format("2006-01-02")
}
