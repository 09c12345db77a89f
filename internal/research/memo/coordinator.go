// Package memo assembles, compiles and persists research one-pagers.
//
// The coordinator gathers a brief (profile, filings, facts, risk block,
// citations), the compiler renders it to deterministic Markdown, and the
// service runs the full pipeline: brief, specialist notes, compile, persist,
// out file, optional archive, with progress events at each stage.
package memo

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/domain"
	"github.com/aristath/onepager/internal/events"
	"github.com/aristath/onepager/internal/research/financials"
	"github.com/aristath/onepager/internal/research/textscan"
)

const (
	// briefFilingLimit caps the filings listed in a brief. The risk analyzer
	// does its own deeper fetch; the brief only needs citations.
	briefFilingLimit = 3

	// snippetFallbackLimit caps the sentence-scan bullets used when no risk
	// analyzer is configured.
	snippetFallbackLimit = 5
)

var briefFilingForms = []string{"10-K", "10-Q"}

// RiskAnalyzer produces the risk analysis block of a brief. Implementations
// degrade internally and never fail.
type RiskAnalyzer interface {
	Analyze(ctx context.Context, ticker string) string
}

// Citations lists the sources quoted at the bottom of a memo.
type Citations struct {
	SEC    []string `json:"sec"`
	Prices string   `json:"prices"`
}

// Brief is everything a memo needs before the specialist notes. Every field
// may be partially filled; the compiler renders absences as n/a.
type Brief struct {
	Ticker    string              `json:"ticker"`
	Profile   domain.Profile      `json:"profile"`
	Filings   []domain.Filing     `json:"filings"`
	Facts     domain.DerivedFacts `json:"facts"`
	RiskBlock string              `json:"risk_block"`
	Citations Citations           `json:"citations"`
}

// Coordinator gathers research briefs. risk and bus are optional: without a
// risk analyzer the brief falls back to plain snippet extraction, without a
// bus no events are emitted.
type Coordinator struct {
	market  domain.MarketDataProvider
	filings domain.FilingsProvider
	risk    RiskAnalyzer
	bus     *events.Bus
	log     zerolog.Logger
}

// NewCoordinator creates a brief coordinator.
func NewCoordinator(market domain.MarketDataProvider, filings domain.FilingsProvider, risk RiskAnalyzer, bus *events.Bus, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		market:  market,
		filings: filings,
		risk:    risk,
		bus:     bus,
		log:     log.With().Str("component", "coordinator").Logger(),
	}
}

// ResearchBrief gathers everything sequentially: profile, filings, facts,
// risk block, citations. Upstream failures degrade the affected field and
// the brief is always returned.
func (c *Coordinator) ResearchBrief(ctx context.Context, ticker string) Brief {
	brief := Brief{Ticker: ticker}

	profile, err := c.market.Profile(ctx, ticker)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("Profile unavailable")
		profile = domain.Profile{Ticker: ticker}
	}
	brief.Profile = profile
	c.emit(events.ProfileLoaded, map[string]interface{}{"ticker": ticker, "name": profile.LongName})

	filings, err := c.filings.LatestFilings(ctx, ticker, briefFilingForms, briefFilingLimit)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("Filings unavailable")
	}
	brief.Filings = filings
	c.emit(events.FilingsLoaded, map[string]interface{}{"ticker": ticker, "count": len(filings)})

	raw, err := c.market.RawFinancials(ctx, ticker)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("Fundamentals unavailable")
		brief.Facts = domain.DerivedFacts{Ticker: ticker}
	} else {
		brief.Facts = financials.Resolve(raw)
	}
	c.emit(events.FactsResolved, map[string]interface{}{"ticker": ticker, "empty": brief.Facts.Empty()})

	brief.RiskBlock = c.riskBlock(ctx, ticker, filings)
	c.emit(events.RiskAnalyzed, map[string]interface{}{"ticker": ticker})

	for _, filing := range filings {
		brief.Citations.SEC = append(brief.Citations.SEC, filing.URL)
	}
	brief.Citations.Prices = c.market.PriceSourceLink(ticker)

	return brief
}

// riskBlock delegates to the risk analyzer when one is wired, otherwise
// extracts sentence-mode snippets straight from the brief's filings.
func (c *Coordinator) riskBlock(ctx context.Context, ticker string, filings []domain.Filing) string {
	if c.risk != nil {
		return c.risk.Analyze(ctx, ticker)
	}

	var docs []domain.Document
	for _, filing := range filings {
		doc, err := c.filings.FetchDocument(ctx, filing.URL)
		if err != nil {
			c.log.Debug().Err(err).Str("url", filing.URL).Msg("Filing document fetch failed")
			continue
		}
		docs = append(docs, doc)
	}

	snippets := textscan.ExtractSnippets(docs)
	if len(snippets) > snippetFallbackLimit {
		snippets = snippets[:snippetFallbackLimit]
	}
	if len(snippets) == 0 {
		return "### Risks (from recent filings)\n_No filings fetched or no risk snippets found._"
	}

	block := "### Risks (from recent filings)"
	for _, s := range snippets {
		block += "\n- " + s
	}
	return block
}

func (c *Coordinator) emit(eventType events.EventType, data map[string]interface{}) {
	if c.bus != nil {
		c.bus.Emit(eventType, "memo", data)
	}
}
