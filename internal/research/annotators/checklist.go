package annotators

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/domain"
)

// Checklist walks a fixed list of diligence items and asks the generative
// collaborator for a short analysis of each. One failing item fails the
// whole section over to the plain checklist; partial generative output would
// read as complete when it is not.
type Checklist struct {
	name      string
	title     string
	specialty string
	items     []string
	market    domain.MarketDataProvider
	textgen   domain.TextGenerator
	log       zerolog.Logger
}

// NewTechChecklist covers the questions that decide a technology thesis.
func NewTechChecklist(market domain.MarketDataProvider, textgen domain.TextGenerator, log zerolog.Logger) *Checklist {
	return newChecklist("tech", "### Tech Analyst Checklist", "technology sector", []string{
		"Moat: network effects / switching costs / data advantage?",
		"Unit economics: gross margin path vs R&D/S&M intensity",
		"Durability: dependence on platform shifts (cloud, AI infra)?",
		"Customer concentration & churn (if available)",
		"SBC dilution trend",
	}, market, textgen, log)
}

// NewFinancialsChecklist covers balance-sheet and cash-flow posture.
func NewFinancialsChecklist(market domain.MarketDataProvider, textgen domain.TextGenerator, log zerolog.Logger) *Checklist {
	return newChecklist("fins", "### Financials Checklist", "balance sheet and cash flow", []string{
		"Leverage posture: debt load vs equity cushion and rate sensitivity",
		"FCF conversion: operating cash flow vs reported earnings quality",
		"Margin trajectory: gross and operating margin direction",
		"Capital returns: dividends and buybacks vs reinvestment needs",
		"Liquidity runway: cash position vs near-term obligations",
	}, market, textgen, log)
}

func newChecklist(name, title, specialty string, items []string, market domain.MarketDataProvider, textgen domain.TextGenerator, log zerolog.Logger) *Checklist {
	return &Checklist{
		name:      name,
		title:     title,
		specialty: specialty,
		items:     items,
		market:    market,
		textgen:   textgen,
		log:       log.With().Str("annotator", name).Logger(),
	}
}

// Name implements Annotator.
func (c *Checklist) Name() string { return c.name }

// Annotate implements Annotator.
func (c *Checklist) Annotate(ctx context.Context, ticker string) string {
	if c.textgen == nil {
		return c.fallback(configureHint)
	}

	companyCtx := companyContext(ctx, c.market, ticker, c.log)

	sections := make([]string, 0, len(c.items))
	for _, item := range c.items {
		analysis, err := c.textgen.Complete(ctx, c.itemPrompt(ticker, item, companyCtx), itemMaxTokens, itemTemperature)
		if err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Str("item", item).Msg("Checklist item analysis failed")
			return c.fallback("⚠️ LLM analysis failed: " + err.Error())
		}
		sections = append(sections, "**"+item+"**\n"+strings.TrimSpace(analysis))
	}

	return c.title + "\n\n" + strings.Join(sections, "\n\n")
}

// fallback renders the bare checklist with a trailing status note.
func (c *Checklist) fallback(note string) string {
	bullets := make([]string, len(c.items))
	for i, item := range c.items {
		bullets[i] = "- " + item
	}
	return c.title + "\n" + strings.Join(bullets, "\n") + "\n\n" + note
}

func (c *Checklist) itemPrompt(ticker, item, companyCtx string) string {
	return fmt.Sprintf(`You are a senior financial analyst specializing in %s analysis.

COMPANY CONTEXT for %s:
%s

ANALYZE: %s

REQUIREMENTS:
- Keep the response under 100 words
- Use bullet-point style
- Give specific, actionable observations
- Reference data points from the context when available`,
		c.specialty, ticker, companyCtx, item)
}
