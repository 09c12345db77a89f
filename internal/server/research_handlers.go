package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/onepager/internal/research/financials"
	"github.com/aristath/onepager/internal/research/memo"
	"github.com/aristath/onepager/internal/research/screen"
)

// handleAnalysisSection handles GET /api/stocks/{symbol}/analysis/{section}.
// Each section is the same Markdown block the memo pipeline would embed.
func (s *Server) handleAnalysisSection(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	section := chi.URLParam(r, "section")

	var markdown string
	switch section {
	case "business_overview":
		profile, err := s.market.Profile(r.Context(), symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Profile fetch failed")
			s.writeError(w, http.StatusBadGateway, "failed to fetch company profile")
			return
		}
		markdown = memo.RenderBusinessOverview(profile)

	case "quick_facts":
		raw, err := s.market.RawFinancials(r.Context(), symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Fundamentals fetch failed")
			s.writeError(w, http.StatusBadGateway, "failed to fetch fundamentals")
			return
		}
		markdown = memo.RenderQuickFacts(financials.Resolve(raw))

	case "risk_analysis":
		markdown = s.risk.Analyze(r.Context(), symbol)

	case "tech_analysis":
		markdown = s.tech.Annotate(r.Context(), symbol)

	case "financials_analysis":
		markdown = s.financials.Annotate(r.Context(), symbol)

	default:
		s.writeError(w, http.StatusNotFound, "unknown analysis section: "+section)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"symbol":   symbol,
		"section":  section,
		"markdown": markdown,
	})
}

// handleCreateMemo handles POST /api/memos/{symbol}: runs the full pipeline
// synchronously and returns the compiled memo.
func (s *Server) handleCreateMemo(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	m, err := s.memos.CreateMemo(r.Context(), symbol)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, m)
}

// memoSummary is the list-view shape: everything but the body.
type memoSummary struct {
	ID         string `json:"id"`
	Ticker     string `json:"ticker"`
	Path       string `json:"path,omitempty"`
	ArchiveURL string `json:"archive_url,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// handleListMemos handles GET /api/memos
func (s *Server) handleListMemos(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	memos, err := s.memos.List(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Memo list failed")
		s.writeError(w, http.StatusInternalServerError, "failed to list memos")
		return
	}

	summaries := make([]memoSummary, 0, len(memos))
	for _, m := range memos {
		summaries = append(summaries, memoSummary{
			ID:         m.ID,
			Ticker:     m.Ticker,
			Path:       m.Path,
			ArchiveURL: m.ArchiveURL,
			CreatedAt:  m.CreatedAt.Unix(),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"memos": summaries,
		"count": len(summaries),
	})
}

// handleGetMemo handles GET /api/memos/{id}
func (s *Server) handleGetMemo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := s.memos.Get(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, http.StatusNotFound, "memo not found")
			return
		}
		s.log.Error().Err(err).Str("id", id).Msg("Memo fetch failed")
		s.writeError(w, http.StatusInternalServerError, "failed to fetch memo")
		return
	}

	s.writeJSON(w, http.StatusOK, m)
}

// handleRunScreen handles POST /api/screens. The body is optional; an empty
// or absent body runs the configured defaults.
func (s *Server) handleRunScreen(w http.ResponseWriter, r *http.Request) {
	var req screen.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.screens.RunScreen(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, result)
}

// handleLatestScreen handles GET /api/screens/latest
func (s *Server) handleLatestScreen(w http.ResponseWriter, r *http.Request) {
	result, err := s.screens.Latest()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, http.StatusNotFound, "no screens have run yet")
			return
		}
		s.log.Error().Err(err).Msg("Latest screen fetch failed")
		s.writeError(w, http.StatusInternalServerError, "failed to fetch latest screen")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
