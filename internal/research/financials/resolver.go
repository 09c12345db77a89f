// Package financials derives valuation metrics from raw fundamentals.
//
// Upstream data is unreliable in a specific way: any individual field may be
// missing, and statement line labels vary by issuer. Every derived metric is
// therefore resolved through an ordered fallback chain, and a metric whose
// inputs never resolve is reported as absent rather than guessed.
package financials

import (
	"math"

	"github.com/aristath/onepager/internal/domain"
)

const (
	// EBITProxyFactor estimates EBIT from EBITDA when no direct figure is
	// reported. Rough depreciation haircut, documented rather than tuned.
	EBITProxyFactor = 0.85

	// TaxRate is the flat corporate rate applied to EBIT for the ROIC
	// estimate.
	TaxRate = 0.21

	// MarginPercentThreshold decides whether an upstream margin is
	// percentage-form (divide by 100) or already fractional. Values in
	// (1.0, 1.5] pass through unchanged; the ambiguity is accepted to stay
	// compatible with upstream conventions.
	MarginPercentThreshold = 1.5

	// MinInvestedCapital floors the ROIC denominator so heavily
	// cash-loaded balance sheets cannot flip the sign or divide by zero.
	MinInvestedCapital = 1e-6
)

// =============================================================================
// STATEMENT LINE ALIASES
// =============================================================================
// Issuer statements label the same line differently. Each alias list is probed
// in order; first hit wins.

var (
	fcfAliases    = []string{"Free Cash Flow", "FreeCashFlow"}
	cfoAliases    = []string{"Total Cash From Operating Activities", "Operating Cash Flow", "Net Cash Provided By Operating Activities"}
	capexAliases  = []string{"Capital Expenditures", "CapitalExpenditures"}
	debtAliases   = []string{"Total Debt", "Short Long Term Debt", "Long Term Debt"}
	equityAliases = []string{"Total Stockholder Equity", "Total Equity"}
	cashAliases   = []string{"Cash", "Cash And Cash Equivalents"}
	ebitAliases   = []string{"Ebit", "EBIT"}
)

// lookup probes a statement table through an ordered alias list.
func lookup(table map[string]float64, aliases []string) (float64, bool) {
	for _, key := range aliases {
		if v, ok := table[key]; ok {
			return v, true
		}
	}
	return 0, false
}

// =============================================================================
// PER-FIELD RESOLUTION CHAINS
// =============================================================================

// resolveMarketCap requires a nonzero value: upstream emits 0 for unpriced
// listings, and a zero market cap is useless as a denominator anyway.
func resolveMarketCap(raw domain.RawFinancials) (float64, bool) {
	if v, ok := raw.Info[domain.KeyMarketCap]; ok && v != 0 {
		return v, true
	}
	if v, ok := raw.FastInfo[domain.KeyMarketCap]; ok && v != 0 {
		return v, true
	}
	return 0, false
}

func resolveFreeCashFlow(raw domain.RawFinancials) (float64, bool) {
	if v, ok := raw.Info[domain.KeyFreeCashFlow]; ok {
		return v, true
	}
	if v, ok := lookup(raw.CashFlow, fcfAliases); ok {
		return v, true
	}
	// Last resort: compute it. Both legs must be present.
	cfo, okCFO := lookup(raw.CashFlow, cfoAliases)
	capex, okCapex := lookup(raw.CashFlow, capexAliases)
	if okCFO && okCapex {
		return cfo - capex, true
	}
	return 0, false
}

// resolveEBIT prefers the EBITDA proxy over the income statement: the
// quick-info source family is fresher than statement tables.
func resolveEBIT(raw domain.RawFinancials) (float64, bool) {
	if v, ok := raw.Info[domain.KeyEBIT]; ok {
		return v, true
	}
	if v, ok := raw.Info[domain.KeyEBITDA]; ok {
		return v * EBITProxyFactor, true
	}
	if v, ok := lookup(raw.Income, ebitAliases); ok {
		return v, true
	}
	return 0, false
}

func resolveTotalDebt(raw domain.RawFinancials) (float64, bool) {
	if v, ok := raw.Info[domain.KeyTotalDebt]; ok {
		return v, true
	}
	return lookup(raw.Balance, debtAliases)
}

func resolveTotalEquity(raw domain.RawFinancials) (float64, bool) {
	if v, ok := raw.Info[domain.KeyTotalEquity]; ok {
		return v, true
	}
	return lookup(raw.Balance, equityAliases)
}

func resolveCash(raw domain.RawFinancials) (float64, bool) {
	if v, ok := raw.Info[domain.KeyCash]; ok {
		return v, true
	}
	return lookup(raw.Balance, cashAliases)
}

// normalizeMargin converts percentage-form margins to fractions.
func normalizeMargin(v float64) float64 {
	if v > MarginPercentThreshold {
		return v / 100
	}
	return v
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolve derives the full fact set from a fundamentals snapshot. Pure: no
// I/O, no error return. Each output field is computed independently, so a
// missing input voids only the metrics that depend on it.
func Resolve(raw domain.RawFinancials) domain.DerivedFacts {
	facts := domain.DerivedFacts{Ticker: raw.Ticker}

	fcf, okFCF := resolveFreeCashFlow(raw)
	mcap, okMcap := resolveMarketCap(raw)
	debt, okDebt := resolveTotalDebt(raw)
	equity, okEquity := resolveTotalEquity(raw)
	cash, okCash := resolveCash(raw)
	ebit, okEBIT := resolveEBIT(raw)

	// FCF yield, falling back to the earnings-yield approximation when the
	// direct formula has no inputs. The basis tag records which one ran.
	if okFCF && okMcap && mcap > 0 {
		yield := fcf / mcap
		facts.FCFYieldTTM = &yield
		facts.FCFYieldBasis = domain.FCFYieldBasisFCF
	} else if pe, ok := raw.Info[domain.KeyTrailingPE]; ok && pe > 0 {
		yield := 1 / pe
		facts.FCFYieldTTM = &yield
		facts.FCFYieldBasis = domain.FCFYieldBasisPE
	}

	// Invested capital needs at least one balance-sheet component; the
	// missing ones count as zero. The floor keeps the denominator positive.
	if okDebt || okEquity || okCash {
		investedCapital := math.Max(debt+equity-cash, MinInvestedCapital)
		if okEBIT {
			roic := ebit * (1 - TaxRate) / investedCapital
			facts.ROICEst = &roic
		}
	}

	// Margins come from quick info only; statement-derived margins would mix
	// reporting periods.
	if v, ok := raw.Info[domain.KeyGrossMargin]; ok {
		m := normalizeMargin(v)
		facts.GrossMargin = &m
	}
	if v, ok := raw.Info[domain.KeyOperatingMargin]; ok {
		m := normalizeMargin(v)
		facts.OperatingMargin = &m
	}

	// Negative equity is real (buyback-heavy issuers); a negative ratio is
	// information, zero equity is not.
	if okDebt && okEquity && equity != 0 {
		ratio := debt / equity
		facts.DebtToEquity = &ratio
	}

	return facts
}
