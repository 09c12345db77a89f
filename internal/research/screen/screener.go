// Package screen filters a symbol universe on resolved fundamentals and
// renders the result as a Markdown report.
package screen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/domain"
	"github.com/aristath/onepager/internal/events"
	"github.com/aristath/onepager/internal/research/financials"
	"github.com/aristath/onepager/internal/utils"
)

// Archiver uploads a screen report to long-term storage and returns its URL.
type Archiver interface {
	UploadScreen(ctx context.Context, result *domain.ScreenResult) (string, error)
}

// Defaults fill in whatever a screen request leaves out.
type Defaults struct {
	Universe    []string
	MinFCFYield float64
	MinROIC     float64
}

// Request is one screen invocation. Nil thresholds and an empty universe
// take the service defaults; an explicit zero threshold is honored.
type Request struct {
	Universe    []string `json:"universe"`
	MinFCFYield *float64 `json:"min_fcf_yield"`
	MinROIC     *float64 `json:"min_roic"`
}

// Service runs screens, persists them and writes the report file. Like the
// memo pipeline, host-level failures degrade rather than abort.
type Service struct {
	market   domain.MarketDataProvider
	repo     *Repository
	archive  Archiver
	bus      *events.Bus
	outDir   string
	defaults Defaults
	log      zerolog.Logger
}

// NewService creates the screen service. archive and bus are optional.
func NewService(market domain.MarketDataProvider, repo *Repository, archive Archiver, bus *events.Bus, outDir string, defaults Defaults, log zerolog.Logger) *Service {
	return &Service{
		market:   market,
		repo:     repo,
		archive:  archive,
		bus:      bus,
		outDir:   outDir,
		defaults: defaults,
		log:      log.With().Str("service", "screen").Logger(),
	}
}

// RunScreen evaluates the universe sequentially against the thresholds and
// returns the persisted result. Symbols whose fundamentals cannot be fetched
// reject as "no facts" rather than failing the run.
func (s *Service) RunScreen(ctx context.Context, req Request) (*domain.ScreenResult, error) {
	universe := req.Universe
	if len(universe) == 0 {
		universe = s.defaults.Universe
	}
	minFCFYield := s.defaults.MinFCFYield
	if req.MinFCFYield != nil {
		minFCFYield = *req.MinFCFYield
	}
	minROIC := s.defaults.MinROIC
	if req.MinROIC != nil {
		minROIC = *req.MinROIC
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("screen universe is empty")
	}
	defer utils.OperationTimer("run_screen", s.log)()

	s.log.Info().
		Int("universe", len(universe)).
		Float64("min_fcf_yield", minFCFYield).
		Float64("min_roic", minROIC).
		Msg("Screen started")
	s.emit(events.ScreenStarted, map[string]interface{}{
		"universe":      len(universe),
		"min_fcf_yield": minFCFYield,
		"min_roic":      minROIC,
	})

	result := &domain.ScreenResult{
		ID:          uuid.NewString(),
		Universe:    universe,
		MinFCFYield: minFCFYield,
		MinROIC:     minROIC,
		CreatedAt:   time.Now().UTC(),
	}

	for _, ticker := range universe {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" {
			continue
		}

		row, reason := s.evaluate(ctx, ticker, minFCFYield, minROIC)
		if row != nil {
			result.Rows = append(result.Rows, *row)
		} else {
			result.Rejections = append(result.Rejections, domain.ScreenRejection{Ticker: ticker, Reason: reason})
		}
		s.emit(events.ScreenEvaluated, map[string]interface{}{
			"ticker": ticker,
			"passed": row != nil,
			"reason": reason,
		})
	}

	result.Body = Render(result)

	if err := s.repo.Save(result); err != nil {
		s.log.Error().Err(err).Msg("Screen persist failed")
		s.emitError(err, map[string]interface{}{"stage": "persist"})
	}

	if path, err := s.writeOutFile(result); err != nil {
		s.log.Error().Err(err).Msg("Screen out file write failed")
		s.emitError(err, map[string]interface{}{"stage": "out_file"})
	} else {
		result.Path = path
	}

	if s.archive != nil {
		if url, err := s.archive.UploadScreen(ctx, result); err != nil {
			s.log.Error().Err(err).Msg("Screen archive upload failed")
			s.emitError(err, map[string]interface{}{"stage": "archive"})
		} else {
			result.ArchiveURL = url
		}
	}

	if result.Path != "" || result.ArchiveURL != "" {
		if err := s.repo.UpdateArtifacts(result.ID, result.Path, result.ArchiveURL); err != nil {
			s.log.Warn().Err(err).Str("id", result.ID).Msg("Screen artifact update failed")
		}
	}

	s.emit(events.ScreenCompleted, map[string]interface{}{
		"id":       result.ID,
		"passed":   len(result.Rows),
		"rejected": len(result.Rejections),
	})
	s.log.Info().
		Str("id", result.ID).
		Int("passed", len(result.Rows)).
		Int("rejected", len(result.Rejections)).
		Msg("Screen finished")

	return result, nil
}

// evaluate resolves one symbol's facts and applies the thresholds. A nil row
// means rejection, with the reason spelled out for the debug section.
func (s *Service) evaluate(ctx context.Context, ticker string, minFCFYield, minROIC float64) (*domain.ScreenRow, string) {
	raw, err := s.market.RawFinancials(ctx, ticker)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Fundamentals unavailable")
		return nil, "no facts"
	}

	facts := financials.Resolve(raw)
	if facts.Empty() {
		return nil, "no facts"
	}

	var reasons []string
	if facts.FCFYieldTTM == nil {
		reasons = append(reasons, "fcf_yield_ttm=None")
	} else if *facts.FCFYieldTTM < minFCFYield {
		reasons = append(reasons, fmt.Sprintf("fcf_yield_ttm<%.2f%%", minFCFYield*100))
	}
	if facts.ROICEst == nil {
		reasons = append(reasons, "roic_est=None")
	} else if *facts.ROICEst < minROIC {
		reasons = append(reasons, fmt.Sprintf("roic_est<%.2f%%", minROIC*100))
	}
	if len(reasons) > 0 {
		return nil, strings.Join(reasons, "; ")
	}

	return &domain.ScreenRow{
		Ticker:       ticker,
		FCFYieldTTM:  *facts.FCFYieldTTM,
		ROICEst:      *facts.ROICEst,
		DebtToEquity: facts.DebtToEquity,
	}, ""
}

// Render produces the screen report Markdown: a passing table (or the
// no-passes line) followed by the rejection trail.
func Render(result *domain.ScreenResult) string {
	var lines []string

	if len(result.Rows) == 0 {
		lines = append(lines, "# Screen Results", "", "_No symbols passed the filter._")
	} else {
		lines = append(lines, "# Screen Results", "",
			"| ticker | fcf_yield_ttm | roic_est | debt_to_equity |",
			"|---|---:|---:|---:|")
		for _, row := range result.Rows {
			dte := "n/a"
			if row.DebtToEquity != nil {
				dte = fmt.Sprintf("%.2f", *row.DebtToEquity)
			}
			lines = append(lines, fmt.Sprintf("| %s | %.2f%% | %.2f%% | %s |",
				row.Ticker, row.FCFYieldTTM*100, row.ROICEst*100, dte))
		}
	}

	if len(result.Rejections) > 0 {
		lines = append(lines, "", "## Rejections (debug)")
		for _, rej := range result.Rejections {
			lines = append(lines, fmt.Sprintf("- **%s** → %s", rej.Ticker, rej.Reason))
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

// Latest returns the most recent persisted screen.
func (s *Service) Latest() (*domain.ScreenResult, error) {
	return s.repo.Latest()
}

func (s *Service) writeOutFile(result *domain.ScreenResult) (string, error) {
	if err := os.MkdirAll(s.outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create out directory: %w", err)
	}

	name := fmt.Sprintf("screen_%s.md", result.CreatedAt.Format("2006-01-02"))
	path := filepath.Join(s.outDir, name)
	if err := os.WriteFile(path, []byte(result.Body), 0644); err != nil {
		return "", fmt.Errorf("failed to write screen file: %w", err)
	}
	return path, nil
}

func (s *Service) emit(eventType events.EventType, data map[string]interface{}) {
	if s.bus != nil {
		s.bus.Emit(eventType, "screen", data)
	}
}

func (s *Service) emitError(err error, context map[string]interface{}) {
	if s.bus != nil {
		s.bus.EmitError("screen", err, context)
	}
}
