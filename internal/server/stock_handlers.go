package server

import (
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/onepager/internal/research/financials"
	"github.com/aristath/onepager/internal/research/quant"
)

// performanceDays is the lookback for the performance endpoint.
const performanceDays = 365

func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
}

// handleStockSearch handles GET /api/stocks/search?q=
func (s *Server) handleStockSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	matches, err := s.market.Search(r.Context(), query)
	if err != nil {
		s.log.Warn().Err(err).Str("query", query).Msg("Symbol search failed")
		s.writeError(w, http.StatusBadGateway, "symbol search failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": matches,
	})
}

// handleStock handles GET /api/stocks/{symbol}: profile plus, when
// available, the latest quote.
func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	profile, err := s.market.Profile(r.Context(), symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Profile fetch failed")
		s.writeError(w, http.StatusBadGateway, "failed to fetch company profile")
		return
	}

	response := map[string]interface{}{
		"profile": profile,
	}
	if quote, err := s.market.Quote(r.Context(), symbol); err == nil {
		response["quote"] = quote
	} else {
		s.log.Debug().Err(err).Str("symbol", symbol).Msg("Quote unavailable")
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleStockPrice handles GET /api/stocks/{symbol}/price
func (s *Server) handleStockPrice(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	quote, err := s.market.Quote(r.Context(), symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote fetch failed")
		s.writeError(w, http.StatusBadGateway, "failed to fetch quote")
		return
	}

	s.writeJSON(w, http.StatusOK, quote)
}

// performanceResponse is the JSON shape for the performance endpoint. The
// Sharpe proxy is a pointer because it is undefined on zero-vol series and
// NaN cannot be encoded as JSON.
type performanceResponse struct {
	Ticker      string         `json:"ticker"`
	Days        int            `json:"days"`
	Bars        int            `json:"bars"`
	TotalReturn float64        `json:"total_return"`
	AnnVol      float64        `json:"ann_vol"`
	MaxDrawdown float64        `json:"max_drawdown"`
	SharpeProxy *float64       `json:"sharpe_proxy"`
	Momentum    quant.Momentum `json:"momentum"`
}

// handleStockPerformance handles GET /api/stocks/{symbol}/performance
func (s *Server) handleStockPerformance(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	bars, err := s.market.History(r.Context(), symbol, performanceDays)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("History fetch failed")
		s.writeError(w, http.StatusBadGateway, "failed to fetch price history")
		return
	}
	if len(bars) < 2 {
		s.writeError(w, http.StatusNotFound, "not enough price history")
		return
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	metrics := quant.BuyAndHoldMetrics(closes)

	response := performanceResponse{
		Ticker:      symbol,
		Days:        performanceDays,
		Bars:        len(bars),
		TotalReturn: metrics.TotalReturn,
		AnnVol:      metrics.AnnVol,
		MaxDrawdown: metrics.MaxDrawdown,
		Momentum:    quant.ComputeMomentum(closes),
	}
	if !math.IsNaN(metrics.SharpeProxy) {
		sharpe := metrics.SharpeProxy
		response.SharpeProxy = &sharpe
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleStockFacts handles GET /api/stocks/{symbol}/facts
func (s *Server) handleStockFacts(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	raw, err := s.market.RawFinancials(r.Context(), symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Fundamentals fetch failed")
		s.writeError(w, http.StatusBadGateway, "failed to fetch fundamentals")
		return
	}

	s.writeJSON(w, http.StatusOK, financials.Resolve(raw))
}
