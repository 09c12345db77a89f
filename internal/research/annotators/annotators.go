// Package annotators contains the specialist note generators appended to a
// memo under Specialist Notes. Every annotator returns a complete Markdown
// section and never an error: generative failures degrade to a plain
// checklist or metrics block with the reason visible in the text.
package annotators

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/domain"
	"github.com/aristath/onepager/internal/research/financials"
)

const (
	// itemMaxTokens and itemTemperature tune the per-item generative calls.
	// Annotator prose is short and slightly warmer than risk analysis.
	itemMaxTokens   = 300
	itemTemperature = 0.3

	// contextSummaryLen bounds the business summary quoted into prompts.
	contextSummaryLen = 400
)

// configureHint is appended when no generative provider is configured.
const configureHint = "ℹ️ Enable LLM analysis by configuring ANTHROPIC_API_KEY or GEMINI_API_KEY"

// Annotator produces one Markdown section for a ticker.
type Annotator interface {
	// Annotate returns the section text. Implementations degrade internally
	// and never return an empty string.
	Annotate(ctx context.Context, ticker string) string

	// Name identifies the annotator in logs and events.
	Name() string
}

// companyContext assembles the prompt context block: identity and summary
// from the profile, headline metrics from the resolved facts. Either source
// failing just shrinks the block.
func companyContext(ctx context.Context, market domain.MarketDataProvider, ticker string, log zerolog.Logger) string {
	var parts []string

	profile, err := market.Profile(ctx, ticker)
	if err != nil {
		log.Debug().Err(err).Str("ticker", ticker).Msg("Profile unavailable for prompt context")
	} else {
		if profile.LongName != "" {
			parts = append(parts, "Company: "+profile.LongName)
		}
		if profile.Sector != "" {
			parts = append(parts, "Sector: "+profile.Sector)
		}
		if profile.Industry != "" {
			parts = append(parts, "Industry: "+profile.Industry)
		}
		if profile.Summary != "" {
			summary := profile.Summary
			if len(summary) > contextSummaryLen {
				summary = summary[:contextSummaryLen]
			}
			parts = append(parts, "Business: "+summary)
		}
	}

	raw, err := market.RawFinancials(ctx, ticker)
	if err != nil {
		log.Debug().Err(err).Str("ticker", ticker).Msg("Fundamentals unavailable for prompt context")
	} else {
		facts := financials.Resolve(raw)
		if facts.FCFYieldTTM != nil {
			parts = append(parts, fmt.Sprintf("FCF Yield: %.2f%%", *facts.FCFYieldTTM*100))
		}
		if facts.ROICEst != nil {
			parts = append(parts, fmt.Sprintf("ROIC (est): %.2f%%", *facts.ROICEst*100))
		}
		if facts.GrossMargin != nil {
			parts = append(parts, fmt.Sprintf("Gross Margin: %.2f%%", *facts.GrossMargin*100))
		}
		if facts.OperatingMargin != nil {
			parts = append(parts, fmt.Sprintf("Operating Margin: %.2f%%", *facts.OperatingMargin*100))
		}
		if facts.DebtToEquity != nil {
			parts = append(parts, fmt.Sprintf("Debt/Equity: %.2f", *facts.DebtToEquity))
		}
	}

	if len(parts) == 0 {
		return "No company context available"
	}
	return strings.Join(parts, "\n")
}
