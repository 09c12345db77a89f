package edgar

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownTicker is returned when the SEC company index has no entry for a ticker.
var ErrUnknownTicker = errors.New("ticker not found in SEC company index")

// APIError represents a non-2xx response from EDGAR.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EDGAR API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents SEC fair-access throttling (HTTP 429).
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("EDGAR rate limit exceeded, retry after %v", e.RetryAfter)
}

// tickerEntry is one row of company_tickers.json. The file is a map of
// arbitrary numeric indexes to entries, not an array.
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// submissionsResponse mirrors data.sec.gov/submissions/CIK##########.json.
// Recent filings arrive as parallel arrays indexed together.
type submissionsResponse struct {
	Filings struct {
		Recent struct {
			Form            []string `json:"form"`
			AccessionNumber []string `json:"accessionNumber"`
			PrimaryDocument []string `json:"primaryDocument"`
			FilingDate      []string `json:"filingDate"`
		} `json:"recent"`
	} `json:"filings"`
}
