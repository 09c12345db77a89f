package quant

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Momentum carries the indicator readings the quant annotator reports
// alongside the buy-and-hold metrics. Nil fields mean the series is too
// short for that indicator.
type Momentum struct {
	RSI14  *float64 `json:"rsi_14"`
	SMA50  *float64 `json:"sma_50"`
	SMA200 *float64 `json:"sma_200"`
}

// RSI returns the current Relative Strength Index over the given period,
// or nil when the series is too short.
func RSI(closes []float64, period int) *float64 {
	if len(closes) < period+1 {
		return nil
	}
	rsi := talib.Rsi(closes, period)
	if len(rsi) == 0 {
		return nil
	}
	last := rsi[len(rsi)-1]
	if math.IsNaN(last) {
		return nil
	}
	return &last
}

// SMA returns the current simple moving average over the given period, or
// nil when the series is too short.
func SMA(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}
	sma := talib.Sma(closes, period)
	if len(sma) == 0 {
		return nil
	}
	last := sma[len(sma)-1]
	if math.IsNaN(last) || last == 0 {
		return nil
	}
	return &last
}

// ComputeMomentum evaluates the standard indicator set: RSI(14) and the
// 50/200-day moving averages.
func ComputeMomentum(closes []float64) Momentum {
	return Momentum{
		RSI14:  RSI(closes, 14),
		SMA50:  SMA(closes, 50),
		SMA200: SMA(closes, 200),
	}
}
