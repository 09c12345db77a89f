// Package yahoo provides the market data client backing the research
// pipeline. Quotes and history go through the go-yfinance library; the
// company profile and the fundamentals snapshot come from the quoteSummary
// endpoint directly, because the library does not expose statement tables.
package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/lookup"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/aristath/onepager/internal/clientdata"
	"github.com/aristath/onepager/internal/domain"
)

const (
	// DefaultQuoteSummaryURL is the Yahoo Finance quoteSummary endpoint.
	DefaultQuoteSummaryURL = "https://query1.finance.yahoo.com/v10/finance/quoteSummary"

	// DefaultSearchURL is the Yahoo Finance symbol search endpoint.
	DefaultSearchURL = "https://query1.finance.yahoo.com/v1/finance/search"

	// DefaultMaxRetries bounds per-call retry attempts against Yahoo.
	DefaultMaxRetries = 3

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Client is the Yahoo Finance market data client. It implements
// domain.MarketDataProvider.
type Client struct {
	httpClient      *http.Client
	cache           *clientdata.Repository
	log             zerolog.Logger
	quoteSummaryURL string
	searchURL       string
	maxRetries      int
	snapshotTTL     time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCache enables snapshot caching through the client data repository.
func WithCache(repo *clientdata.Repository) Option {
	return func(c *Client) {
		c.cache = repo
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log.With().Str("client", "yahoo").Logger()
	}
}

// WithEndpoints overrides the Yahoo endpoints, used by tests.
func WithEndpoints(quoteSummaryURL, searchURL string) Option {
	return func(c *Client) {
		c.quoteSummaryURL = quoteSummaryURL
		c.searchURL = searchURL
	}
}

// WithMaxRetries sets the retry bound for quote fetches.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithSnapshotTTL overrides how long cached fundamentals snapshots stay fresh.
func WithSnapshotTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.snapshotTTL = ttl
		}
	}
}

// NewClient creates a new Yahoo Finance client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:             zerolog.Nop(),
		quoteSummaryURL: DefaultQuoteSummaryURL,
		searchURL:       DefaultSearchURL,
		maxRetries:      DefaultMaxRetries,
		snapshotTTL:     clientdata.TTLYahooSnapshot,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PriceSourceLink returns the citation URL for price data.
func (c *Client) PriceSourceLink(symbol string) string {
	return "https://finance.yahoo.com/quote/" + strings.ToUpper(symbol)
}

// Quote returns the latest price snapshot. Regular market price is
// preferred; pre and post market prices cover extended hours, and the
// info endpoint backfills when the quote comes back empty.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(symbol)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Quote{}, err
		}

		quote, err := c.quoteOnce(symbol)
		if err == nil {
			return quote, nil
		}
		lastErr = err

		if attempt < c.maxRetries-1 {
			waitTime := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn().Err(err).
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("wait", waitTime).
				Msg("Failed to get quote, retrying")
			select {
			case <-ctx.Done():
				return domain.Quote{}, ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return domain.Quote{}, fmt.Errorf("failed to get quote for %s after %d attempts: %w", symbol, c.maxRetries, lastErr)
}

func (c *Client) quoteOnce(symbol string) (domain.Quote, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	var price float64
	if quote, err := t.Quote(); err == nil && quote != nil {
		price = quote.RegularMarketPrice
		if price <= 0 {
			price = quote.PreMarketPrice
		}
		if price <= 0 {
			price = quote.PostMarketPrice
		}
	}

	var previousClose float64
	if info, err := t.Info(); err == nil && info != nil {
		if price <= 0 {
			price = info.CurrentPrice
		}
		if price <= 0 {
			price = info.RegularMarketPreviousClose
		}
		previousClose = info.RegularMarketPreviousClose
	}

	if price <= 0 {
		return domain.Quote{}, fmt.Errorf("no valid price for %s", symbol)
	}

	q := domain.Quote{
		Ticker: symbol,
		Price:  price,
	}
	if previousClose > 0 {
		q.PreviousClose = previousClose
		q.Change = price - previousClose
		q.ChangePct = (q.Change / previousClose) * 100
	}
	return q, nil
}

// History returns up to days of daily auto-adjusted bars, oldest first.
func (c *Client) History(ctx context.Context, symbol string, days int) ([]domain.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)

	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	params := models.HistoryParams{
		Period:     periodForDays(days),
		Interval:   "1d",
		AutoAdjust: true,
	}

	bars, err := t.History(params)
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}

	out := make([]domain.PriceBar, 0, len(bars))
	cutoff := time.Now().AddDate(0, 0, -days)
	for _, bar := range bars {
		if bar.Close <= 0 {
			continue
		}
		if bar.Date.Before(cutoff) {
			continue
		}
		out = append(out, domain.PriceBar{
			Date:   bar.Date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: int64(bar.Volume),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	c.log.Debug().
		Str("symbol", symbol).
		Int("days", days).
		Int("bars", len(out)).
		Msg("Fetched price history")

	return out, nil
}

// periodForDays maps a day count onto the nearest Yahoo range covering it.
// Supported ranges: 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, max.
func periodForDays(days int) string {
	switch {
	case days <= 5:
		return "5d"
	case days <= 31:
		return "1mo"
	case days <= 93:
		return "3mo"
	case days <= 186:
		return "6mo"
	case days <= 366:
		return "1y"
	case days <= 731:
		return "2y"
	case days <= 1830:
		return "5y"
	default:
		return "10y"
	}
}

// Search looks up symbols matching a free-text query. The Yahoo search
// endpoint is tried first; on failure or an empty answer the curated table
// keeps the common large caps findable, and a direct equity lookup is the
// last resort for symbols the table does not carry.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SymbolMatch{}, nil
	}

	matches, err := c.searchRemote(ctx, query)
	if err == nil && len(matches) > 0 {
		return matches, nil
	}
	if err != nil {
		c.log.Warn().Err(err).Str("query", query).Msg("Yahoo search failed, using fallback table")
	}

	if fb := fallbackMatches(query); len(fb) > 0 {
		return fb, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if symbol, lerr := c.lookupSymbol(query); lerr == nil {
		return []domain.SymbolMatch{{Symbol: symbol, Type: "EQUITY"}}, nil
	}

	return []domain.SymbolMatch{}, nil
}

// lookupSymbol resolves a free-text identifier to its primary ticker via the
// go-yfinance lookup API.
func (c *Client) lookupSymbol(identifier string) (string, error) {
	lookupClient, err := lookup.New(identifier)
	if err != nil {
		return "", fmt.Errorf("failed to create lookup client: %w", err)
	}
	defer lookupClient.Close()

	results, err := lookupClient.Stock(1)
	if err != nil {
		return "", fmt.Errorf("failed to lookup %q: %w", identifier, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no ticker found for %q", identifier)
	}
	return results[0].Symbol, nil
}

// curatedSymbols is the offline search fallback. Subset of liquid US names
// plus the default screen universe, matched by symbol or name prefix.
var curatedSymbols = []domain.SymbolMatch{
	{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NMS", Type: "EQUITY"},
	{Symbol: "MSFT", Name: "Microsoft Corporation", Exchange: "NMS", Type: "EQUITY"},
	{Symbol: "GOOGL", Name: "Alphabet Inc.", Exchange: "NMS", Type: "EQUITY"},
	{Symbol: "AMZN", Name: "Amazon.com Inc.", Exchange: "NMS", Type: "EQUITY"},
	{Symbol: "META", Name: "Meta Platforms Inc.", Exchange: "NMS", Type: "EQUITY"},
	{Symbol: "NVDA", Name: "NVIDIA Corporation", Exchange: "NMS", Type: "EQUITY"},
	{Symbol: "TSLA", Name: "Tesla Inc.", Exchange: "NMS", Type: "EQUITY"},
	{Symbol: "NFLX", Name: "Netflix Inc.", Exchange: "NMS", Type: "EQUITY"},
	{Symbol: "JPM", Name: "JPMorgan Chase & Co.", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "BAC", Name: "Bank of America Corp.", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "GS", Name: "Goldman Sachs Group Inc.", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "BRK-B", Name: "Berkshire Hathaway Inc.", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "V", Name: "Visa Inc.", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "MA", Name: "Mastercard Incorporated", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "JNJ", Name: "Johnson & Johnson", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "PFE", Name: "Pfizer Inc.", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "UNH", Name: "UnitedHealth Group Inc.", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "LLY", Name: "Eli Lilly and Company", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "PG", Name: "Procter & Gamble Company", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "KO", Name: "The Coca-Cola Company", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "WMT", Name: "Walmart Inc.", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "HD", Name: "The Home Depot Inc.", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "XOM", Name: "Exxon Mobil Corporation", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "CVX", Name: "Chevron Corporation", Exchange: "NYQ", Type: "EQUITY"},
	{Symbol: "SPY", Name: "SPDR S&P 500 ETF Trust", Exchange: "PCX", Type: "ETF"},
	{Symbol: "QQQ", Name: "Invesco QQQ Trust", Exchange: "NMS", Type: "ETF"},
}

const maxSearchResults = 5

func fallbackMatches(query string) []domain.SymbolMatch {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return []domain.SymbolMatch{}
	}

	matches := make([]domain.SymbolMatch, 0, maxSearchResults)

	// Exact symbol match wins outright.
	for _, s := range curatedSymbols {
		if s.Symbol == q {
			return []domain.SymbolMatch{s}
		}
	}

	for _, s := range curatedSymbols {
		if strings.HasPrefix(s.Symbol, q) || strings.Contains(strings.ToUpper(s.Name), q) {
			matches = append(matches, s)
			if len(matches) >= maxSearchResults {
				break
			}
		}
	}

	return matches
}
