// Package risk assembles the risk analysis block of a memo.
//
// The analyzer gathers risk documents (recent SEC filings plus a
// profile-derived excerpt), then either asks the generative collaborator for
// a structured assessment or, when that path is unavailable or fails, builds
// a deterministic summary from the documents and resolved facts. The failure
// reason is surfaced in the output text, never swallowed.
package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/domain"
	"github.com/aristath/onepager/internal/research/financials"
	"github.com/aristath/onepager/internal/research/textscan"
)

const (
	// filingLimit caps how many recent filings feed one analysis.
	filingLimit = 5

	// analysisMaxTokens and analysisTemperature tune the generative call.
	// Risk analysis gets a larger budget and runs colder than the checklist
	// annotators.
	analysisMaxTokens   = 600
	analysisTemperature = 0.2

	// promptDocLimit caps how many document summaries enter the prompt, and
	// promptContentLen how much of each document's content.
	promptDocLimit   = 3
	promptContentLen = 300

	// fallbackDocLimit / fallbackContentLen are the equivalents for the
	// deterministic fallback listing.
	fallbackDocLimit   = 3
	fallbackContentLen = 200

	// nonHTMLExcerptLen bounds the excerpt taken from non-HTML documents,
	// which have no risk section to locate.
	nonHTMLExcerptLen = 1000

	// profileSentenceLimit caps the sentences pulled from the business
	// summary into the profile pseudo-document.
	profileSentenceLimit = 5
)

var filingForms = []string{"10-K", "10-Q", "8-K"}

// profileRiskKeywords mark business-summary sentences worth quoting. This is
// a narrower list than the filing scan uses: profiles are short and
// promotional, so only strong signals count.
var profileRiskKeywords = []string{"risk", "challenge", "uncertainty", "volatility", "competition"}

// Analyzer produces the risk analysis block. A nil TextGenerator is valid
// and routes every call to the deterministic fallback.
type Analyzer struct {
	market  domain.MarketDataProvider
	filings domain.FilingsProvider
	textgen domain.TextGenerator
	log     zerolog.Logger
}

// New creates a risk analyzer. textgen may be nil when no generative
// provider is configured.
func New(market domain.MarketDataProvider, filings domain.FilingsProvider, textgen domain.TextGenerator, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		market:  market,
		filings: filings,
		textgen: textgen,
		log:     log.With().Str("component", "risk_analyzer").Logger(),
	}
}

// Analyze returns the risk analysis Markdown block for a ticker. It always
// returns a non-empty block: upstream failures degrade the content, the
// generative path failing falls back to the deterministic summary with the
// reason visible, and nothing propagates as an error.
func (a *Analyzer) Analyze(ctx context.Context, ticker string) string {
	profile, facts := a.companyContext(ctx, ticker)
	docs := a.GatherDocuments(ctx, ticker, profile)

	if len(docs) == 0 {
		return "### Risk Analysis\n⚠️ No recent risk documents available for analysis."
	}

	if a.textgen == nil {
		return a.fallback(facts, docs, "text generation not configured")
	}

	analysis, err := a.generate(ctx, ticker, profile, facts, docs)
	if err != nil {
		a.log.Warn().Err(err).Str("ticker", ticker).Msg("Generative risk analysis failed, using fallback")
		return a.fallback(facts, docs, err.Error())
	}

	return "### Risk Analysis\n\n" + analysis
}

// companyContext fetches the profile and resolved facts, each degrading to
// its zero value on failure so the analysis can proceed on whatever is left.
func (a *Analyzer) companyContext(ctx context.Context, ticker string) (domain.Profile, domain.DerivedFacts) {
	profile, err := a.market.Profile(ctx, ticker)
	if err != nil {
		a.log.Warn().Err(err).Str("ticker", ticker).Msg("Profile unavailable for risk context")
		profile = domain.Profile{Ticker: ticker}
	}

	var facts domain.DerivedFacts
	raw, err := a.market.RawFinancials(ctx, ticker)
	if err != nil {
		a.log.Warn().Err(err).Str("ticker", ticker).Msg("Fundamentals unavailable for risk context")
	} else {
		facts = financials.Resolve(raw)
	}

	return profile, facts
}

// GatherDocuments builds the per-analysis document set: recent filings with
// their risk sections extracted, plus a pseudo-document quoting risk language
// from the business summary. Documents are ephemeral; nothing here is cached
// across calls.
func (a *Analyzer) GatherDocuments(ctx context.Context, ticker string, profile domain.Profile) []domain.RiskDocument {
	var docs []domain.RiskDocument

	filings, err := a.filings.LatestFilings(ctx, ticker, filingForms, filingLimit)
	if err != nil {
		a.log.Warn().Err(err).Str("ticker", ticker).Msg("Filing index unavailable")
	}
	for _, filing := range filings {
		docs = append(docs, domain.RiskDocument{
			Source:  "SEC",
			Type:    filing.Form,
			Date:    filing.Date,
			URL:     filing.URL,
			Content: a.extractFilingContent(ctx, filing.URL),
		})
	}

	if profile.Summary != "" || profile.LongName != "" {
		docs = append(docs, domain.RiskDocument{
			Source:  "Market Data",
			Type:    "Company Profile",
			Date:    "Current",
			URL:     "N/A",
			Content: profileRiskExcerpt(profile),
		})
	}

	return docs
}

// extractFilingContent fetches one filing and reduces it to its risk
// discussion. HTML documents get the contiguous-block scan; anything else is
// excerpted from the top, since there is no structure to search.
func (a *Analyzer) extractFilingContent(ctx context.Context, url string) string {
	doc, err := a.filings.FetchDocument(ctx, url)
	if err != nil {
		a.log.Debug().Err(err).Str("url", url).Msg("Filing document fetch failed")
		return "Content extraction failed"
	}

	if strings.Contains(doc.ContentType, "text/html") {
		return textscan.ExtractRiskBlock(doc.Text)
	}
	if len(doc.Text) > nonHTMLExcerptLen {
		return doc.Text[:nonHTMLExcerptLen]
	}
	return doc.Text
}

// profileRiskExcerpt pulls risk-flavored sentences out of the business
// summary, capped and joined back into one excerpt.
func profileRiskExcerpt(profile domain.Profile) string {
	var kept []string
	for _, sentence := range strings.Split(profile.Summary, ".") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, kw := range profileRiskKeywords {
			if strings.Contains(lower, kw) {
				kept = append(kept, sentence)
				break
			}
		}
		if len(kept) >= profileSentenceLimit {
			break
		}
	}
	if len(kept) == 0 {
		return "No specific risk information in profile"
	}
	return strings.Join(kept, ". ")
}

// generate runs the generative path: prompt from context plus document
// summaries, one completion call. Errors propagate to Analyze, which falls
// back.
func (a *Analyzer) generate(ctx context.Context, ticker string, profile domain.Profile, facts domain.DerivedFacts, docs []domain.RiskDocument) (string, error) {
	prompt := buildPrompt(ticker, profile, facts, docs)

	analysis, err := a.textgen.Complete(ctx, prompt, analysisMaxTokens, analysisTemperature)
	if err != nil {
		return "", err
	}

	analysis = strings.TrimSpace(analysis)
	if analysis == "" {
		return "", fmt.Errorf("empty completion for %s", ticker)
	}
	return analysis, nil
}

func buildPrompt(ticker string, profile domain.Profile, facts domain.DerivedFacts, docs []domain.RiskDocument) string {
	var summaries []string
	for i, doc := range docs {
		if i >= promptDocLimit {
			break
		}
		summaries = append(summaries, fmt.Sprintf("Document %d (%s - %s): %s...",
			i+1, doc.Source, doc.Date, truncate(doc.Content, promptContentLen)))
	}

	sector := profile.Sector
	if sector == "" {
		sector = "Unknown sector"
	}
	business := profile.Summary
	if business == "" {
		business = "No description"
	}

	return fmt.Sprintf(`You are a senior risk analyst. Analyze risks for %s (%s).

BUSINESS: %s

FINANCIALS: FCF Yield: %s, ROIC: %s, Gross Margin: %s, Debt/Equity: %s

RECENT DOCUMENTS:
%s

ANALYZE AND PROVIDE:

## Executive Risk Summary
[2 sentences on overall risk profile]

## Top 5 Risks by Severity
1. **[Risk Name]** - [High/Medium/Low] probability, [High/Medium/Low] impact
   - Description: [1 sentence]
   - Mitigation: [1 sentence]
   - Trend: [Increasing/Stable/Decreasing]

[Continue for top 5 risks...]

## Risk Monitoring
- Key metrics to watch: [3-4 specific indicators]
- Investment considerations: [2-3 sentences]

Keep total response under 400 words. Focus on most material risks.`,
		ticker, sector,
		truncate(business, promptContentLen),
		promptNumber(facts.FCFYieldTTM), promptNumber(facts.ROICEst),
		promptNumber(facts.GrossMargin), promptNumber(facts.DebtToEquity),
		strings.Join(summaries, "\n"))
}

// fallback builds the deterministic block: the failure reason, the document
// list, and risk readings off the resolved facts.
func (a *Analyzer) fallback(facts domain.DerivedFacts, docs []domain.RiskDocument, reason string) string {
	lines := []string{
		"### Risk Analysis",
		"",
		fmt.Sprintf("⚠️ **LLM Analysis Unavailable**: %s", reason),
		"",
		"**Fallback Analysis Based on Available Data:**",
		"",
	}

	if len(docs) > 0 {
		lines = append(lines, "**Recent Risk Documents Analyzed:**")
		for i, doc := range docs {
			if i >= fallbackDocLimit {
				break
			}
			lines = append(lines,
				fmt.Sprintf("%d. **%s - %s** (%s)", i+1, doc.Source, doc.Type, doc.Date),
				fmt.Sprintf("   Content: %s...", truncate(doc.Content, fallbackContentLen)),
				"")
		}
	} else {
		lines = append(lines, "No recent risk documents available for analysis.")
	}

	if !facts.Empty() {
		lines = append(lines, "**Financial Risk Indicators:**")
		if facts.DebtToEquity != nil {
			lines = append(lines, fmt.Sprintf("- Debt/Equity: %.2f (Higher values indicate more leverage risk)", *facts.DebtToEquity))
		}
		if facts.FCFYieldTTM != nil {
			lines = append(lines, fmt.Sprintf("- FCF Yield: %.2f%% (Lower values may indicate cash flow risk)", *facts.FCFYieldTTM*100))
		}
		if facts.ROICEst != nil {
			lines = append(lines, fmt.Sprintf("- ROIC: %.2f%% (Lower values may indicate capital efficiency risk)", *facts.ROICEst*100))
		}
	}

	lines = append(lines, "",
		"ℹ️ **Enable LLM Analysis**: Configure ANTHROPIC_API_KEY or GEMINI_API_KEY for comprehensive risk assessment.")

	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// promptNumber renders an optional metric for prompt text.
func promptNumber(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.4f", *v)
}
