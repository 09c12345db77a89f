// Package domain provides core domain models and types.
package domain

import "time"

// Profile describes a company at the level a memo needs: identity,
// classification, and the prose business summary risk scanning feeds on.
type Profile struct {
	Ticker   string `json:"ticker"`
	LongName string `json:"long_name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Summary  string `json:"summary"`
	Website  string `json:"website"`
	Country  string `json:"country"`
	Exchange string `json:"exchange"`
}

// Quote is a point-in-time price snapshot
type Quote struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	Change        float64 `json:"change"`
	ChangePct     float64 `json:"change_pct"`
}

// PriceBar is one day of adjusted OHLCV history. Series are always
// chronological (oldest first).
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// SymbolMatch is one row of a symbol search result
type SymbolMatch struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
}

// Filing identifies one SEC filing and where to fetch its primary document.
type Filing struct {
	Form            string `json:"form"`
	Date            string `json:"date"`
	AccessionNumber string `json:"accession_number"`
	URL             string `json:"url"`
}

// Document is a fetched filing document body. Text carries extracted plain
// text for HTML documents and the raw body otherwise.
type Document struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Text        string `json:"text"`
}

// RiskDocument is a per-analysis excerpt assembled for the risk analyzer.
// It is ephemeral: built fresh on every analysis call, never cached.
type RiskDocument struct {
	Source  string `json:"source"`
	Type    string `json:"type"`
	Date    string `json:"date"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Memo is a persisted one-pager
type Memo struct {
	ID         string            `json:"id"`
	Ticker     string            `json:"ticker"`
	Body       string            `json:"body"`
	Sections   map[string]string `json:"sections,omitempty"`
	Path       string            `json:"path,omitempty"`
	ArchiveURL string            `json:"archive_url,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ScreenRow is one symbol that passed the screen filter
type ScreenRow struct {
	Ticker       string   `json:"ticker"`
	FCFYieldTTM  float64  `json:"fcf_yield_ttm"`
	ROICEst      float64  `json:"roic_est"`
	DebtToEquity *float64 `json:"debt_to_equity"`
}

// ScreenRejection records why a symbol was filtered out
type ScreenRejection struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// ScreenResult is a persisted screen run: thresholds, survivors, and the
// rejection trail kept for debugging the filter.
type ScreenResult struct {
	ID          string            `json:"id"`
	Universe    []string          `json:"universe"`
	MinFCFYield float64           `json:"min_fcf_yield"`
	MinROIC     float64           `json:"min_roic"`
	Rows        []ScreenRow       `json:"rows"`
	Rejections  []ScreenRejection `json:"rejections"`
	Body        string            `json:"body"`
	Path        string            `json:"path,omitempty"`
	ArchiveURL  string            `json:"archive_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
