package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/aristath/onepager/internal/clientdata"
	"github.com/aristath/onepager/internal/domain"
)

// quoteSummary module sets per concern.
const (
	profileModules = "assetProfile,price"

	financialsModules = "summaryDetail,financialData,defaultKeyStatistics," +
		"cashflowStatementHistory,incomeStatementHistory,balanceSheetHistory"
)

// quoteSummaryResponse represents the response from the quoteSummary API.
type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteSummary"`
}

// quoteSummary fetches the requested modules for a symbol.
func (c *Client) quoteSummary(ctx context.Context, symbol, modules string) (map[string]interface{}, error) {
	reqURL := c.quoteSummaryURL + "/" + url.PathEscape(symbol) + "?modules=" + url.QueryEscape(modules)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result quoteSummaryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("Yahoo Finance API error: %v", result.QuoteSummary.Error)
	}

	if len(result.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no data returned for symbol %s", symbol)
	}

	return result.QuoteSummary.Result[0], nil
}

// Profile returns the company profile built from the assetProfile and price
// quoteSummary modules.
func (c *Client) Profile(ctx context.Context, symbol string) (domain.Profile, error) {
	symbol = strings.ToUpper(symbol)

	result, err := c.quoteSummary(ctx, symbol, profileModules)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("failed to get profile for %s: %w", symbol, err)
	}

	assetProfile := moduleMap(result, "assetProfile")
	price := moduleMap(result, "price")

	name := getString(price, "longName", "")
	if name == "" {
		name = getString(price, "shortName", "")
	}
	if name == "" {
		name = symbol
	}

	return domain.Profile{
		Ticker:   symbol,
		LongName: name,
		Sector:   getString(assetProfile, "sector", ""),
		Industry: getString(assetProfile, "industry", ""),
		Summary:  getString(assetProfile, "longBusinessSummary", ""),
		Website:  getString(assetProfile, "website", ""),
		Country:  getString(assetProfile, "country", ""),
		Exchange: getString(price, "exchangeName", ""),
	}, nil
}

// RawFinancials returns the fundamentals snapshot for a symbol. Snapshots
// are cached: a fresh row short-circuits the network, and when the fetch
// fails a stale row is served rather than nothing.
func (c *Client) RawFinancials(ctx context.Context, symbol string) (domain.RawFinancials, error) {
	symbol = strings.ToUpper(symbol)

	if c.cache != nil {
		var cached domain.RawFinancials
		if found, err := c.cache.GetInto(clientdata.TableYahooSnapshots, symbol, true, &cached); err == nil && found {
			c.log.Debug().Str("symbol", symbol).Msg("Using cached fundamentals snapshot")
			return cached, nil
		}
	}

	snapshot, err := c.fetchRawFinancials(ctx, symbol)
	if err != nil {
		if c.cache != nil {
			var stale domain.RawFinancials
			if found, cerr := c.cache.GetInto(clientdata.TableYahooSnapshots, symbol, false, &stale); cerr == nil && found {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("Fundamentals fetch failed, serving stale snapshot")
				return stale, nil
			}
		}
		return domain.RawFinancials{}, err
	}

	if c.cache != nil {
		if err := c.cache.Store(clientdata.TableYahooSnapshots, symbol, snapshot, c.snapshotTTL); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache fundamentals snapshot")
		}
	}

	return snapshot, nil
}

// fetchRawFinancials pulls the summary and statement modules and maps them
// onto the canonical snapshot layout.
func (c *Client) fetchRawFinancials(ctx context.Context, symbol string) (domain.RawFinancials, error) {
	result, err := c.quoteSummary(ctx, symbol, financialsModules)
	if err != nil {
		return domain.RawFinancials{}, fmt.Errorf("failed to get fundamentals for %s: %w", symbol, err)
	}

	summaryDetail := moduleMap(result, "summaryDetail")
	financialData := moduleMap(result, "financialData")
	keyStats := moduleMap(result, "defaultKeyStatistics")

	info := make(map[string]float64)
	putRaw(info, domain.KeyMarketCap, summaryDetail, "marketCap")
	putRaw(info, domain.KeyTrailingPE, summaryDetail, "trailingPE")
	putRaw(info, domain.KeyFreeCashFlow, financialData, "freeCashflow")
	putRaw(info, domain.KeyGrossMargin, financialData, "grossMargins")
	putRaw(info, domain.KeyOperatingMargin, financialData, "operatingMargins")
	putRaw(info, domain.KeyTotalDebt, financialData, "totalDebt")
	putRaw(info, domain.KeyCash, financialData, "totalCash")
	putRaw(info, domain.KeyEBITDA, financialData, "ebitda")
	if _, ok := info[domain.KeyTrailingPE]; !ok {
		putRaw(info, domain.KeyTrailingPE, keyStats, "trailingPE")
	}

	cashFlow := statementTable(result, "cashflowStatementHistory", "cashflowStatements")
	income := statementTable(result, "incomeStatementHistory", "incomeStatementHistory")
	balance := statementTable(result, "balanceSheetHistory", "balanceSheetStatements")

	// The library quote path carries a market cap of its own; only worth the
	// extra call when the summary modules did not report one.
	fastInfo := make(map[string]float64)
	if _, ok := info[domain.KeyMarketCap]; !ok {
		if mc := c.fastMarketCap(symbol); mc > 0 {
			fastInfo[domain.KeyMarketCap] = mc
		}
	}

	raw := domain.NewRawFinancials(symbol, info, fastInfo, cashFlow, income, balance)
	if raw.Empty() {
		return domain.RawFinancials{}, fmt.Errorf("no fundamentals data for %s", symbol)
	}

	return raw, nil
}

// fastMarketCap reads the market cap off the library info endpoint.
func (c *Client) fastMarketCap(symbol string) float64 {
	t, err := ticker.New(symbol)
	if err != nil {
		return 0
	}
	defer t.Close()

	info, err := t.Info()
	if err != nil || info == nil {
		return 0
	}
	return float64(info.MarketCap)
}

// yahooSearchResponse represents the response from the search API.
type yahooSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		ExchDisp  string `json:"exchDisp"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

// searchRemote queries the Yahoo search endpoint.
func (c *Client) searchRemote(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("quotesCount", "8")
	params.Add("newsCount", "0")

	reqURL := c.searchURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result yahooSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	matches := make([]domain.SymbolMatch, 0, len(result.Quotes))
	for _, q := range result.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		matches = append(matches, domain.SymbolMatch{
			Symbol:   q.Symbol,
			Name:     name,
			Exchange: q.ExchDisp,
			Type:     q.QuoteType,
		})
		if len(matches) >= maxSearchResults {
			break
		}
	}

	return matches, nil
}

// Helper functions to safely extract values from quoteSummary maps.

// moduleMap pulls a module object out of a quoteSummary result.
func moduleMap(result map[string]interface{}, module string) map[string]interface{} {
	if val, ok := result[module]; ok && val != nil {
		if m, ok := val.(map[string]interface{}); ok {
			return m
		}
	}
	return map[string]interface{}{}
}

// rawFloat unwraps a quoteSummary numeric field. v10 wraps numbers as
// {"raw": 1.23, "fmt": "1.23"}; plain numbers pass through unchanged.
func rawFloat(m map[string]interface{}, key string) *float64 {
	val, ok := m[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case float64:
		return &v
	case map[string]interface{}:
		return getFloat64(v, "raw")
	}
	return nil
}

func getFloat64(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		}
	}
	return nil
}

func getString(m map[string]interface{}, key, defaultVal string) string {
	if val, ok := m[key]; ok && val != nil {
		if s, ok := val.(string); ok && s != "" {
			return s
		}
	}
	return defaultVal
}

// putRaw copies a field into the canonical map when the source reports it.
func putRaw(dst map[string]float64, canonical string, src map[string]interface{}, field string) {
	if v := rawFloat(src, field); v != nil {
		dst[canonical] = *v
	}
}

// statementTable flattens the most recent statement of a history module into
// a label -> value table. Yahoo reports statement lines camelCased; labels
// are converted to the spaced Title Case form the resolver probes.
func statementTable(result map[string]interface{}, module, listKey string) map[string]float64 {
	table := make(map[string]float64)

	m := moduleMap(result, module)
	list, ok := m[listKey].([]interface{})
	if !ok || len(list) == 0 {
		return table
	}

	// Entries are ordered most recent first.
	latest, ok := list[0].(map[string]interface{})
	if !ok {
		return table
	}

	for field := range latest {
		if field == "maxAge" || field == "endDate" {
			continue
		}
		if v := rawFloat(latest, field); v != nil {
			table[titleCaseLabel(field)] = *v
		}
	}

	return table
}

// titleCaseLabel converts a camelCase statement field into a spaced Title
// Case label ("totalStockholderEquity" becomes "Total Stockholder Equity").
func titleCaseLabel(field string) string {
	if field == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(field) + 4)
	for i, r := range field {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
