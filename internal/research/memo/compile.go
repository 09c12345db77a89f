package memo

import (
	"fmt"
	"strings"

	"github.com/aristath/onepager/internal/domain"
)

// summaryTruncateLen bounds the business summary quoted in the overview.
const summaryTruncateLen = 600

// CompileMemo renders a brief and its specialist addenda into the one-pager
// Markdown. Pure and deterministic: same inputs, same bytes. Absent values
// render as n/a rather than dropping their lines, so every memo has the same
// shape.
func CompileMemo(ticker string, brief Brief, addenda []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s — One-Pager (Personal Research)\n\n", strings.ToUpper(ticker))

	b.WriteString(RenderBusinessOverview(brief.Profile))
	b.WriteString("\n")

	b.WriteString(RenderQuickFacts(brief.Facts))
	b.WriteString("\n")

	if brief.RiskBlock != "" {
		b.WriteString(brief.RiskBlock)
		b.WriteString("\n\n")
	}

	b.WriteString("## Specialist Notes\n\n")
	if len(addenda) == 0 {
		b.WriteString("_No specialist notes._\n\n")
	} else {
		b.WriteString(strings.Join(addenda, "\n\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("## Sources\n")
	sec := "n/a"
	if len(brief.Citations.SEC) > 0 {
		sec = strings.Join(brief.Citations.SEC, ", ")
	}
	fmt.Fprintf(&b, "- SEC filings: %s\n", sec)
	fmt.Fprintf(&b, "- Prices/news: %s\n\n", orNA(brief.Citations.Prices))

	b.WriteString("_For personal research; not investment advice._\n\n")

	b.WriteString("## Metrics Glossary\n\n")
	b.WriteString("**FCF Yield** — Free Cash Flow (Operating Cash Flow – CapEx) ÷ Market Cap. Roughly, the cash return you get on the stock price.\n\n")
	b.WriteString("**ROIC (Return on Invested Capital)** — After-tax operating profit ÷ (Debt + Equity – Cash). Shows how efficiently the business turns capital into profit.\n\n")
	b.WriteString("**Debt-to-Equity** — Total Debt ÷ Shareholders' Equity. A measure of leverage; higher values mean more debt relative to equity.\n")

	return b.String()
}

// RenderBusinessOverview renders the overview section. Shared by the memo
// compiler and the per-section analysis API.
func RenderBusinessOverview(profile domain.Profile) string {
	var b strings.Builder
	b.WriteString("## Business Overview\n")
	fmt.Fprintf(&b, "- Name: %s\n", orNA(profile.LongName))
	fmt.Fprintf(&b, "- Sector: %s  |  Industry: %s\n", orNA(profile.Sector), orNA(profile.Industry))
	fmt.Fprintf(&b, "- Summary: %s\n", orNA(truncateSummary(profile.Summary)))
	return b.String()
}

// RenderQuickFacts renders the quick facts section.
func RenderQuickFacts(facts domain.DerivedFacts) string {
	var b strings.Builder
	b.WriteString("## Quick Facts (TTM / latest)\n")
	fmt.Fprintf(&b, "- FCF Yield: %s\n", fcfYieldLine(facts))
	fmt.Fprintf(&b, "- ROIC (rough): %s\n", pct(facts.ROICEst))
	fmt.Fprintf(&b, "- Debt/Equity: %s\n", ratio(facts.DebtToEquity))
	fmt.Fprintf(&b, "- Gross Margin: %s  |  Op Margin: %s\n", pct(facts.GrossMargin), pct(facts.OperatingMargin))
	return b.String()
}

// fcfYieldLine renders the yield with its provenance visible when the number
// came from the earnings-yield approximation rather than actual FCF.
func fcfYieldLine(facts domain.DerivedFacts) string {
	s := pct(facts.FCFYieldTTM)
	if facts.FCFYieldBasis == domain.FCFYieldBasisPE {
		s += " (earnings-yield proxy)"
	}
	return s
}

func truncateSummary(s string) string {
	if len(s) > summaryTruncateLen {
		return s[:summaryTruncateLen]
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

// pct renders an optional fraction as a percentage.
func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}

// ratio renders an optional plain ratio.
func ratio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
