package domain

import "math"

// Canonical quick-info keys. Upstream field names vary by provider; the
// market data client maps whatever it gets onto these before anything
// downstream sees the data.
const (
	KeyMarketCap       = "market_cap"
	KeyFreeCashFlow    = "free_cash_flow"
	KeyGrossMargin     = "gross_margin"
	KeyOperatingMargin = "operating_margin"
	KeyTotalDebt       = "total_debt"
	KeyTotalEquity     = "total_equity"
	KeyCash            = "cash"
	KeyEBIT            = "ebit"
	KeyEBITDA          = "ebitda"
	KeyTrailingPE      = "trailing_pe"
)

// FCF yield provenance: which formula actually produced the number.
const (
	FCFYieldBasisFCF = "fcf/mcap"
	FCFYieldBasisPE  = "1/pe"
)

// RawFinancials is an immutable per-request snapshot of everything the
// fundamentals resolver may probe. Info and FastInfo are flat lookups under
// the canonical keys above; CashFlow, Income and Balance hold the most
// recent period value per statement line, keyed by issuer-dependent labels.
// Absence of a key means the upstream did not report it.
type RawFinancials struct {
	Ticker   string             `json:"ticker" msgpack:"ticker"`
	Info     map[string]float64 `json:"info" msgpack:"info"`
	FastInfo map[string]float64 `json:"fast_info" msgpack:"fast_info"`
	CashFlow map[string]float64 `json:"cash_flow" msgpack:"cash_flow"`
	Income   map[string]float64 `json:"income" msgpack:"income"`
	Balance  map[string]float64 `json:"balance" msgpack:"balance"`
}

// NewRawFinancials builds a snapshot, dropping non-finite values so that
// NaN and Inf can never reach the resolver. Upstream statement tables leak
// NaN for lines an issuer stopped reporting; a NaN cell is the same as a
// missing cell.
func NewRawFinancials(ticker string, info, fastInfo, cashFlow, income, balance map[string]float64) RawFinancials {
	return RawFinancials{
		Ticker:   ticker,
		Info:     dropNonFinite(info),
		FastInfo: dropNonFinite(fastInfo),
		CashFlow: dropNonFinite(cashFlow),
		Income:   dropNonFinite(income),
		Balance:  dropNonFinite(balance),
	}
}

func dropNonFinite(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = v
	}
	return out
}

// Empty reports whether the snapshot carries no data at all.
func (r RawFinancials) Empty() bool {
	return len(r.Info) == 0 && len(r.FastInfo) == 0 &&
		len(r.CashFlow) == 0 && len(r.Income) == 0 && len(r.Balance) == 0
}

// DerivedFacts is the resolver output. A nil field means the metric could
// not be established from the snapshot; a non-nil field is always finite.
// FCFYieldBasis records which formula produced FCFYieldTTM ("fcf/mcap" or
// "1/pe") and is empty when the yield is absent.
type DerivedFacts struct {
	Ticker          string   `json:"ticker" msgpack:"ticker"`
	FCFYieldTTM     *float64 `json:"fcf_yield_ttm" msgpack:"fcf_yield_ttm"`
	FCFYieldBasis   string   `json:"fcf_yield_basis,omitempty" msgpack:"fcf_yield_basis"`
	ROICEst         *float64 `json:"roic_est" msgpack:"roic_est"`
	GrossMargin     *float64 `json:"gross_margin" msgpack:"gross_margin"`
	OperatingMargin *float64 `json:"operating_margin" msgpack:"operating_margin"`
	DebtToEquity    *float64 `json:"debt_to_equity" msgpack:"debt_to_equity"`
}

// Empty reports whether no metric resolved at all.
func (d DerivedFacts) Empty() bool {
	return d.FCFYieldTTM == nil && d.ROICEst == nil && d.GrossMargin == nil &&
		d.OperatingMargin == nil && d.DebtToEquity == nil
}
