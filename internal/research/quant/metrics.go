// Package quant provides the price-series statistics used by screens and
// memo annotators.
package quant

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization base for daily return series.
const TradingDaysPerYear = 252

// Metrics is the buy-and-hold summary for one price series.
type Metrics struct {
	TotalReturn float64 `json:"total_return"`
	AnnVol      float64 `json:"ann_vol"`
	MaxDrawdown float64 `json:"max_drawdown"`
	// SharpeProxy is total return over annualized vol. NaN when the series
	// has no volatility; callers rendering JSON must handle that.
	SharpeProxy float64 `json:"sharpe_proxy"`
}

// PctChange converts prices to period-over-period returns. Periods with a
// zero denominator are skipped, so the result may be shorter than
// len(prices)-1.
func PctChange(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	return returns
}

// MaxDrawdown returns the deepest peak-to-trough decline relative to the
// running maximum, as a non-positive fraction. Flat or strictly rising
// series score 0.
func MaxDrawdown(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	peak := prices[0]
	minDD := 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak > 0 {
			if dd := p/peak - 1; dd < minDD {
				minDD = dd
			}
		}
	}
	return minDD
}

// AnnualizedVol scales the population standard deviation of a return series
// by the square root of the period count. Empty input yields 0, never an
// error: a symbol with no history screens as zero-vol rather than failing
// the whole run.
func AnnualizedVol(returns []float64, periodsPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := stat.Mean(returns, nil)
	// Population variance (ddof=0), not gonum's sample variance.
	popVar := stat.MomentAbout(2, returns, mean, nil)
	return math.Sqrt(popVar) * math.Sqrt(float64(periodsPerYear))
}

// TotalReturn is last over first minus one.
func TotalReturn(prices []float64) float64 {
	if len(prices) < 2 || prices[0] == 0 {
		return 0
	}
	return prices[len(prices)-1]/prices[0] - 1
}

// SharpeProxy divides total return by annualized vol. No risk-free leg, so
// it is only a ranking proxy. NaN when vol is zero.
func SharpeProxy(totalReturn, vol float64) float64 {
	if vol > 0 {
		return totalReturn / vol
	}
	return math.NaN()
}

// BuyAndHoldMetrics computes the full summary over a close series.
func BuyAndHoldMetrics(closes []float64) Metrics {
	returns := PctChange(closes)
	vol := AnnualizedVol(returns, TradingDaysPerYear)
	totalReturn := TotalReturn(closes)
	return Metrics{
		TotalReturn: totalReturn,
		AnnVol:      vol,
		MaxDrawdown: MaxDrawdown(closes),
		SharpeProxy: SharpeProxy(totalReturn, vol),
	}
}
