package domain

import "context"

// MarketDataProvider defines the market data operations the research
// pipeline depends on. Keeping the contract here breaks the dependency
// between the research packages and the concrete Yahoo client.
type MarketDataProvider interface {
	// Profile returns company identity and the business summary.
	Profile(ctx context.Context, ticker string) (Profile, error)

	// Quote returns the latest price snapshot.
	Quote(ctx context.Context, ticker string) (Quote, error)

	// History returns up to days of daily adjusted bars, oldest first.
	History(ctx context.Context, ticker string, days int) ([]PriceBar, error)

	// RawFinancials returns the fundamentals snapshot the resolver probes.
	// Implementations must route values through NewRawFinancials so no
	// non-finite number escapes.
	RawFinancials(ctx context.Context, ticker string) (RawFinancials, error)

	// Search looks up symbols matching a free-text query.
	Search(ctx context.Context, query string) ([]SymbolMatch, error)

	// PriceSourceLink returns a citation URL for the price data source.
	PriceSourceLink(ticker string) string
}

// FilingsProvider defines the regulatory filings operations
type FilingsProvider interface {
	// LatestFilings returns the most recent filings of the given forms,
	// newest first, at most limit entries.
	LatestFilings(ctx context.Context, ticker string, forms []string, limit int) ([]Filing, error)

	// FetchDocument downloads one filing document. HTML bodies come back
	// as extracted plain text with script and style content removed.
	FetchDocument(ctx context.Context, url string) (Document, error)
}

// TextGenerator is the generative-text collaborator. The research layer
// treats it as opaque: prompt in, prose out. Errors propagate to the
// caller, which is expected to degrade to a deterministic fallback rather
// than fail the analysis.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}
