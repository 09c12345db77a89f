package annotators

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/domain"
	"github.com/aristath/onepager/internal/research/quant"
)

// quantHistoryDays is the lookback window for the quant note.
const quantHistoryDays = 365

// Quant reports buy-and-hold statistics and momentum readings over one year
// of history, optionally followed by a generative risk assessment of those
// numbers.
type Quant struct {
	market  domain.MarketDataProvider
	textgen domain.TextGenerator
	log     zerolog.Logger
}

// NewQuant creates the quant annotator. textgen may be nil.
func NewQuant(market domain.MarketDataProvider, textgen domain.TextGenerator, log zerolog.Logger) *Quant {
	return &Quant{
		market:  market,
		textgen: textgen,
		log:     log.With().Str("annotator", "quant").Logger(),
	}
}

// Name implements Annotator.
func (q *Quant) Name() string { return "quant" }

// Annotate implements Annotator.
func (q *Quant) Annotate(ctx context.Context, ticker string) string {
	bars, err := q.market.History(ctx, ticker, quantHistoryDays)
	if err != nil {
		q.log.Warn().Err(err).Str("ticker", ticker).Msg("Price history unavailable")
	}
	if len(bars) < 2 {
		return "### Quant Note\n- Not enough price history."
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	metrics := quant.BuyAndHoldMetrics(closes)
	head := q.metricsBlock(closes, metrics)

	if q.textgen == nil {
		return head + "\n\n" + configureHint
	}

	assessment, err := q.textgen.Complete(ctx, quantPrompt(ticker, metrics), itemMaxTokens, itemTemperature)
	if err != nil {
		q.log.Warn().Err(err).Str("ticker", ticker).Msg("Quant risk assessment failed")
		return head + "\n\n⚠️ LLM analysis failed: " + err.Error()
	}

	return head + "\n\n**LLM Risk Assessment:**\n" + strings.TrimSpace(assessment)
}

// metricsBlock renders the deterministic head of the note. Momentum lines
// appear only when the series is long enough for the indicator.
func (q *Quant) metricsBlock(closes []float64, metrics quant.Metrics) string {
	lo, hi := closes[0], closes[0]
	for _, c := range closes {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}

	lines := []string{
		"### Quant Note",
		fmt.Sprintf("- Annualized Vol: %.2f%%", metrics.AnnVol*100),
		fmt.Sprintf("- Max Drawdown (1y lookback): %.2f%%", metrics.MaxDrawdown*100),
		fmt.Sprintf("- Total Return (1y): %.2f%%", metrics.TotalReturn*100),
		fmt.Sprintf("- Price Range (1y): %.2f - %.2f", lo, hi),
	}

	momentum := quant.ComputeMomentum(closes)
	if momentum.RSI14 != nil {
		lines = append(lines, fmt.Sprintf("- RSI(14): %.1f", *momentum.RSI14))
	}
	if momentum.SMA50 != nil && momentum.SMA200 != nil {
		posture := "50d above 200d"
		if *momentum.SMA50 < *momentum.SMA200 {
			posture = "50d below 200d"
		}
		lines = append(lines, fmt.Sprintf("- SMA(50/200): %.2f / %.2f (%s)", *momentum.SMA50, *momentum.SMA200, posture))
	}

	return strings.Join(lines, "\n")
}

func quantPrompt(ticker string, metrics quant.Metrics) string {
	return fmt.Sprintf(`You are a quantitative risk analyst. %s shows annualized volatility of %.2f%%, a maximum drawdown of %.2f%% and a total return of %.2f%% over the past year.

Assess the risk profile these numbers imply in under 80 words. Note whether the volatility is high, moderate or low for an equity, and what the drawdown says about downside behavior.`,
		ticker, metrics.AnnVol*100, metrics.MaxDrawdown*100, metrics.TotalReturn*100)
}
