// Package edgar provides SEC EDGAR filings access with persistent caching.
//
// The SEC's fair access policy requires a declared User-Agent and caps
// automated traffic, so every request goes through a shared rate limiter
// and responses are cached where the data is stable (CIK mappings, filing
// documents).
package edgar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/onepager/internal/clientdata"
	"github.com/aristath/onepager/internal/domain"
)

const (
	// DefaultTickerIndexURL maps tickers to CIK numbers.
	DefaultTickerIndexURL = "https://www.sec.gov/files/company_tickers.json"

	// DefaultSubmissionsURL is the base URL for per-company filing indexes.
	DefaultSubmissionsURL = "https://data.sec.gov/submissions"

	// DefaultArchivesURL is the base URL for filing documents.
	DefaultArchivesURL = "https://www.sec.gov/Archives/edgar/data"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	// SEC fair access allows 10/s; we stay well under it.
	DefaultRateLimit = 4
)

// Client is a SEC EDGAR client.
type Client struct {
	tickerIndexURL string
	submissionsURL string
	archivesURL    string
	userAgent      string
	httpClient     *http.Client
	limiter        *rate.Limiter
	cache          *clientdata.Repository
	log            zerolog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLimiter sets a custom rate limiter; shared limiters keep multiple
// consumers under the same SEC budget.
func WithLimiter(limiter *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithCache enables persistent caching of CIK mappings and documents.
func WithCache(repo *clientdata.Repository) ClientOption {
	return func(c *Client) {
		c.cache = repo
	}
}

// WithLogger sets a logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log.With().Str("client", "edgar").Logger()
	}
}

// WithEndpoints overrides the SEC endpoints, used by tests.
func WithEndpoints(tickerIndexURL, submissionsURL, archivesURL string) ClientOption {
	return func(c *Client) {
		c.tickerIndexURL = tickerIndexURL
		c.submissionsURL = submissionsURL
		c.archivesURL = archivesURL
	}
}

// NewClient creates a new EDGAR client. userAgent must identify the caller
// per SEC policy ("name contact@example.com").
func NewClient(userAgent string, opts ...ClientOption) *Client {
	c := &Client{
		tickerIndexURL: DefaultTickerIndexURL,
		submissionsURL: DefaultSubmissionsURL,
		archivesURL:    DefaultArchivesURL,
		userAgent:      userAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		log:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// fetch performs a rate-limited GET and returns the body and content type.
func (c *Client) fetch(ctx context.Context, rawURL, endpoint string) ([]byte, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debug().Str("url", rawURL).Msg("EDGAR request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, "", &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   endpoint,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// getJSON performs a rate-limited GET and decodes the JSON body into result.
func (c *Client) getJSON(ctx context.Context, rawURL, endpoint string, result interface{}) error {
	body, _, err := c.fetch(ctx, rawURL, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CIKFor resolves a ticker to its zero-padded 10-digit CIK number.
// Mappings change rarely, so hits are served from cache for 30 days; if the
// index fetch fails a stale mapping is still returned (stale data > no data).
func (c *Client) CIKFor(ctx context.Context, ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	if c.cache != nil {
		var cik string
		if found, err := c.cache.GetInto(clientdata.TableEdgarCIK, ticker, true, &cik); err == nil && found {
			c.log.Debug().Str("ticker", ticker).Str("cik", cik).Msg("CIK cache hit")
			return cik, nil
		}
	}

	var index map[string]tickerEntry
	if err := c.getJSON(ctx, c.tickerIndexURL, "/files/company_tickers.json", &index); err != nil {
		if cik, ok := c.staleCIK(ticker); ok {
			c.log.Warn().Err(err).Str("ticker", ticker).Str("cik", cik).
				Msg("Ticker index fetch failed, using stale cached CIK")
			return cik, nil
		}
		return "", err
	}

	for _, entry := range index {
		if strings.EqualFold(entry.Ticker, ticker) {
			cik := fmt.Sprintf("%010d", entry.CIK)
			if c.cache != nil {
				if err := c.cache.Store(clientdata.TableEdgarCIK, ticker, cik, clientdata.TTLEdgarCIK); err != nil {
					c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache CIK")
				}
			}
			return cik, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
}

// staleCIK retrieves a cached CIK even if expired.
func (c *Client) staleCIK(ticker string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	var cik string
	found, err := c.cache.GetInto(clientdata.TableEdgarCIK, ticker, false, &cik)
	if err != nil || !found {
		return "", false
	}
	return cik, true
}

// LatestFilings returns the most recent filings of the requested forms,
// newest first as EDGAR orders them. An empty forms slice matches any form;
// limit <= 0 means no limit.
func (c *Client) LatestFilings(ctx context.Context, ticker string, forms []string, limit int) ([]domain.Filing, error) {
	cik, err := c.CIKFor(ctx, ticker)
	if err != nil {
		return nil, err
	}

	var subs submissionsResponse
	submissionsURL := fmt.Sprintf("%s/CIK%s.json", c.submissionsURL, cik)
	if err := c.getJSON(ctx, submissionsURL, "/submissions", &subs); err != nil {
		return nil, err
	}

	// The archives path wants the CIK without leading zeros.
	cikInt, err := strconv.ParseInt(cik, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CIK %q: %w", cik, err)
	}

	formSet := make(map[string]bool, len(forms))
	for _, f := range forms {
		formSet[f] = true
	}

	recent := subs.Filings.Recent
	n := len(recent.Form)
	for _, l := range []int{len(recent.AccessionNumber), len(recent.PrimaryDocument), len(recent.FilingDate)} {
		if l < n {
			n = l
		}
	}

	var filings []domain.Filing
	for i := 0; i < n; i++ {
		if len(formSet) > 0 && !formSet[recent.Form[i]] {
			continue
		}
		accNoDashes := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		filings = append(filings, domain.Filing{
			Form:            recent.Form[i],
			Date:            recent.FilingDate[i],
			AccessionNumber: recent.AccessionNumber[i],
			URL:             fmt.Sprintf("%s/%d/%s/%s", c.archivesURL, cikInt, accNoDashes, recent.PrimaryDocument[i]),
		})
		if limit > 0 && len(filings) >= limit {
			break
		}
	}

	c.log.Debug().
		Str("ticker", ticker).
		Str("cik", cik).
		Int("count", len(filings)).
		Msg("Fetched filing index")

	return filings, nil
}

// FetchDocument downloads a filing document and extracts its text. HTML
// documents are reduced to visible text (script and style stripped); other
// content types pass through raw. Documents are immutable once filed, so
// they cache well; a stale copy is returned if the fetch fails.
func (c *Client) FetchDocument(ctx context.Context, rawURL string) (domain.Document, error) {
	if c.cache != nil {
		var doc domain.Document
		if found, err := c.cache.GetInto(clientdata.TableEdgarDocuments, rawURL, true, &doc); err == nil && found {
			c.log.Debug().Str("url", rawURL).Msg("Document cache hit")
			return doc, nil
		}
	}

	body, contentType, err := c.fetch(ctx, rawURL, "/Archives")
	if err != nil {
		if doc, ok := c.staleDocument(rawURL); ok {
			c.log.Warn().Err(err).Str("url", rawURL).
				Msg("Document fetch failed, using stale cached copy")
			return doc, nil
		}
		return domain.Document{}, err
	}

	doc := domain.Document{URL: rawURL, ContentType: contentType}
	if strings.Contains(contentType, "text/html") {
		parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return domain.Document{}, fmt.Errorf("failed to parse document HTML: %w", err)
		}
		parsed.Find("script, style").Remove()
		doc.Text = parsed.Text()
	} else {
		doc.Text = string(body)
	}

	if c.cache != nil {
		if err := c.cache.Store(clientdata.TableEdgarDocuments, rawURL, doc, clientdata.TTLEdgarDocument); err != nil {
			c.log.Warn().Err(err).Str("url", rawURL).Msg("Failed to cache document")
		}
	}

	return doc, nil
}

// staleDocument retrieves a cached document even if expired.
func (c *Client) staleDocument(rawURL string) (domain.Document, bool) {
	if c.cache == nil {
		return domain.Document{}, false
	}
	var doc domain.Document
	found, err := c.cache.GetInto(clientdata.TableEdgarDocuments, rawURL, false, &doc)
	if err != nil || !found {
		return domain.Document{}, false
	}
	return doc, true
}
