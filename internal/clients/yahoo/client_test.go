package yahoo

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/onepager/internal/clientdata"
	"github.com/aristath/onepager/internal/domain"
)

const profileJSON = `{
	"quoteSummary": {
		"result": [{
			"assetProfile": {
				"sector": "Technology",
				"industry": "Consumer Electronics",
				"longBusinessSummary": "Apple Inc. designs, manufactures and markets smartphones.",
				"website": "https://www.apple.com",
				"country": "United States"
			},
			"price": {
				"longName": "Apple Inc.",
				"shortName": "Apple",
				"exchangeName": "NasdaqGS"
			}
		}],
		"error": null
	}
}`

const financialsJSON = `{
	"quoteSummary": {
		"result": [{
			"summaryDetail": {
				"marketCap": {"raw": 3000000000000, "fmt": "3.00T"},
				"trailingPE": {"raw": 29.5, "fmt": "29.50"}
			},
			"financialData": {
				"freeCashflow": {"raw": 100000000000, "fmt": "100.00B"},
				"grossMargins": {"raw": 0.44, "fmt": "44.00%"},
				"operatingMargins": {"raw": 0.30, "fmt": "30.00%"},
				"totalDebt": {"raw": 110000000000, "fmt": "110.00B"},
				"totalCash": {"raw": 60000000000, "fmt": "60.00B"},
				"ebitda": {"raw": 130000000000, "fmt": "130.00B"}
			},
			"defaultKeyStatistics": {},
			"cashflowStatementHistory": {
				"cashflowStatements": [{
					"maxAge": 1,
					"endDate": {"raw": 1695945600, "fmt": "2023-09-29"},
					"totalCashFromOperatingActivities": {"raw": 110543000000, "fmt": "110.54B"},
					"capitalExpenditures": {"raw": -10959000000, "fmt": "-10.96B"}
				}]
			},
			"incomeStatementHistory": {
				"incomeStatementHistory": [{
					"maxAge": 1,
					"ebit": {"raw": 114301000000, "fmt": "114.30B"}
				}]
			},
			"balanceSheetHistory": {
				"balanceSheetStatements": [{
					"maxAge": 1,
					"totalStockholderEquity": {"raw": 62146000000, "fmt": "62.15B"}
				}]
			}
		}],
		"error": null
	}
}`

const searchJSON = `{
	"quotes": [
		{"symbol": "AAPL", "shortname": "Apple", "longname": "Apple Inc.", "exchDisp": "NASDAQ", "quoteType": "EQUITY"},
		{"symbol": "APLE", "shortname": "Apple Hospitality REIT", "exchDisp": "NYSE", "quoteType": "EQUITY"},
		{"symbol": "", "shortname": "ghost entry"}
	]
}`

// newQuoteSummaryServer serves canned quoteSummary and search payloads and
// counts quoteSummary hits.
func newQuoteSummaryServer(t *testing.T, summaryStatus int, summaryBody string) (*httptest.Server, *int) {
	t.Helper()
	callCount := new(int)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		switch {
		case r.URL.Path == "/v1/finance/search":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(searchJSON))
		default:
			*callCount++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(summaryStatus)
			w.Write([]byte(summaryBody))
		}
	}))
	t.Cleanup(server.Close)

	return server, callCount
}

func newTestClient(server *httptest.Server, opts ...Option) *Client {
	base := []Option{
		WithEndpoints(
			server.URL+"/v10/finance/quoteSummary",
			server.URL+"/v1/finance/search",
		),
	}
	return NewClient(append(base, opts...)...)
}

func setupCache(t *testing.T) *clientdata.Repository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE yahoo_snapshots (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);`)
	require.NoError(t, err)

	return clientdata.NewRepository(db)
}

func TestProfile(t *testing.T) {
	server, _ := newQuoteSummaryServer(t, http.StatusOK, profileJSON)
	client := newTestClient(server)

	profile, err := client.Profile(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", profile.Ticker)
	assert.Equal(t, "Apple Inc.", profile.LongName)
	assert.Equal(t, "Technology", profile.Sector)
	assert.Equal(t, "Consumer Electronics", profile.Industry)
	assert.Contains(t, profile.Summary, "smartphones")
	assert.Equal(t, "https://www.apple.com", profile.Website)
	assert.Equal(t, "United States", profile.Country)
	assert.Equal(t, "NasdaqGS", profile.Exchange)
}

func TestProfileNameFallsBackToShortName(t *testing.T) {
	const body = `{
		"quoteSummary": {
			"result": [{
				"assetProfile": {"sector": "Technology"},
				"price": {"shortName": "Apple"}
			}],
			"error": null
		}
	}`
	server, _ := newQuoteSummaryServer(t, http.StatusOK, body)
	client := newTestClient(server)

	profile, err := client.Profile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple", profile.LongName)
}

func TestProfileAPIError(t *testing.T) {
	const body = `{
		"quoteSummary": {
			"result": [],
			"error": {"code": "Not Found", "description": "Quote not found"}
		}
	}`
	server, _ := newQuoteSummaryServer(t, http.StatusOK, body)
	client := newTestClient(server)

	_, err := client.Profile(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Yahoo Finance API error")
}

func TestRawFinancialsMapsCanonicalKeys(t *testing.T) {
	server, _ := newQuoteSummaryServer(t, http.StatusOK, financialsJSON)
	client := newTestClient(server)

	raw, err := client.RawFinancials(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", raw.Ticker)
	assert.Equal(t, 3e12, raw.Info[domain.KeyMarketCap])
	assert.Equal(t, 29.5, raw.Info[domain.KeyTrailingPE])
	assert.Equal(t, 1e11, raw.Info[domain.KeyFreeCashFlow])
	assert.Equal(t, 0.44, raw.Info[domain.KeyGrossMargin])
	assert.Equal(t, 0.30, raw.Info[domain.KeyOperatingMargin])
	assert.Equal(t, 1.1e11, raw.Info[domain.KeyTotalDebt])
	assert.Equal(t, 6e10, raw.Info[domain.KeyCash])
	assert.Equal(t, 1.3e11, raw.Info[domain.KeyEBITDA])
}

func TestRawFinancialsStatementLabels(t *testing.T) {
	server, _ := newQuoteSummaryServer(t, http.StatusOK, financialsJSON)
	client := newTestClient(server)

	raw, err := client.RawFinancials(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 110543000000.0, raw.CashFlow["Total Cash From Operating Activities"])
	assert.Equal(t, -10959000000.0, raw.CashFlow["Capital Expenditures"])
	assert.Equal(t, 114301000000.0, raw.Income["Ebit"])
	assert.Equal(t, 62146000000.0, raw.Balance["Total Stockholder Equity"])

	// Bookkeeping fields never become statement lines.
	assert.NotContains(t, raw.CashFlow, "Max Age")
	assert.NotContains(t, raw.CashFlow, "End Date")
}

func TestRawFinancialsEmptySnapshot(t *testing.T) {
	const body = `{
		"quoteSummary": {
			"result": [{"summaryDetail": {}, "financialData": {}}],
			"error": null
		}
	}`
	server, _ := newQuoteSummaryServer(t, http.StatusOK, body)
	client := newTestClient(server)

	_, err := client.RawFinancials(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fundamentals data")
}

func TestRawFinancialsUsesFreshCache(t *testing.T) {
	server, callCount := newQuoteSummaryServer(t, http.StatusOK, financialsJSON)
	client := newTestClient(server, WithCache(setupCache(t)))

	first, err := client.RawFinancials(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, *callCount)

	second, err := client.RawFinancials(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, *callCount, "fresh snapshot must not refetch")
	assert.Equal(t, first.Info, second.Info)
}

func TestRawFinancialsServesStaleOnFetchFailure(t *testing.T) {
	server, _ := newQuoteSummaryServer(t, http.StatusInternalServerError, "upstream down")
	cache := setupCache(t)
	client := newTestClient(server, WithCache(cache))

	stale := domain.NewRawFinancials("AAPL",
		map[string]float64{domain.KeyMarketCap: 2.5e12}, nil, nil, nil, nil)
	require.NoError(t, cache.Store(clientdata.TableYahooSnapshots, "AAPL", stale, -time.Hour))

	raw, err := client.RawFinancials(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2.5e12, raw.Info[domain.KeyMarketCap])
}

func TestRawFinancialsFetchFailureWithoutCache(t *testing.T) {
	server, _ := newQuoteSummaryServer(t, http.StatusInternalServerError, "upstream down")
	client := newTestClient(server)

	_, err := client.RawFinancials(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSearchRemote(t *testing.T) {
	server, _ := newQuoteSummaryServer(t, http.StatusOK, financialsJSON)
	client := newTestClient(server)

	matches, err := client.Search(context.Background(), "apple")
	require.NoError(t, err)
	require.Len(t, matches, 2, "blank symbols are dropped")

	assert.Equal(t, "AAPL", matches[0].Symbol)
	assert.Equal(t, "Apple Inc.", matches[0].Name)
	assert.Equal(t, "NASDAQ", matches[0].Exchange)
	assert.Equal(t, "EQUITY", matches[0].Type)
	assert.Equal(t, "Apple Hospitality REIT", matches[1].Name, "short name fills a missing long name")
}

func TestSearchFallsBackToCuratedTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client := newTestClient(server)

	matches, err := client.Search(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "AAPL", matches[0].Symbol)
	assert.Equal(t, "Apple Inc.", matches[0].Name)
}

func TestSearchEmptyQuery(t *testing.T) {
	server, _ := newQuoteSummaryServer(t, http.StatusOK, financialsJSON)
	client := newTestClient(server)

	matches, err := client.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFallbackMatches(t *testing.T) {
	t.Run("exact symbol wins outright", func(t *testing.T) {
		matches := fallbackMatches("msft")
		require.Len(t, matches, 1)
		assert.Equal(t, "MSFT", matches[0].Symbol)
	})

	t.Run("name substring", func(t *testing.T) {
		matches := fallbackMatches("bank of")
		require.NotEmpty(t, matches)
		assert.Equal(t, "BAC", matches[0].Symbol)
	})

	t.Run("result cap", func(t *testing.T) {
		matches := fallbackMatches("a")
		assert.LessOrEqual(t, len(matches), maxSearchResults)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, fallbackMatches("ZZZZQ"))
	})
}

func TestPriceSourceLink(t *testing.T) {
	client := NewClient()
	assert.Equal(t, "https://finance.yahoo.com/quote/AAPL", client.PriceSourceLink("aapl"))
}

func TestPeriodForDays(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{1, "5d"},
		{5, "5d"},
		{30, "1mo"},
		{90, "3mo"},
		{180, "6mo"},
		{365, "1y"},
		{730, "2y"},
		{1825, "5y"},
		{4000, "10y"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, periodForDays(tt.days), "days=%d", tt.days)
	}
}

func TestTitleCaseLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ebit", "Ebit"},
		{"totalStockholderEquity", "Total Stockholder Equity"},
		{"totalCashFromOperatingActivities", "Total Cash From Operating Activities"},
		{"capitalExpenditures", "Capital Expenditures"},
		{"netIncome", "Net Income"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, titleCaseLabel(tt.in))
	}
}

func TestRawFloat(t *testing.T) {
	m := map[string]interface{}{
		"wrapped": map[string]interface{}{"raw": 12.5, "fmt": "12.50"},
		"plain":   3.25,
		"empty":   map[string]interface{}{},
		"text":    "n/a",
	}

	require.NotNil(t, rawFloat(m, "wrapped"))
	assert.Equal(t, 12.5, *rawFloat(m, "wrapped"))
	require.NotNil(t, rawFloat(m, "plain"))
	assert.Equal(t, 3.25, *rawFloat(m, "plain"))
	assert.Nil(t, rawFloat(m, "empty"))
	assert.Nil(t, rawFloat(m, "text"))
	assert.Nil(t, rawFloat(m, "missing"))
}
