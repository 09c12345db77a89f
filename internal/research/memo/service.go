package memo

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
	"github.com/aristath/onepager/internal/research/annotators"
	"github.com/aristath/onepager/internal/utils"
)

// Archiver uploads a compiled memo to long-term storage and returns its URL.
type Archiver interface {
	UploadMemo(ctx context.Context, m *domain.Memo) (string, error)
}

// Service runs the full memo pipeline. Assembly never aborts: persistence,
// out-file and archive failures are logged and leave their field empty on
// the returned memo, but the memo itself is always produced.
type Service struct {
	coordinator *Coordinator
	annotators  []annotators.Annotator
	repo        *Repository
	archive     Archiver
	bus         *events.Bus
	outDir      string
	log         zerolog.Logger
}

// NewService creates the memo service. archive and bus are optional.
func NewService(coordinator *Coordinator, notes []annotators.Annotator, repo *Repository, archive Archiver, bus *events.Bus, outDir string, log zerolog.Logger) *Service {
	return &Service{
		coordinator: coordinator,
		annotators:  notes,
		repo:        repo,
		archive:     archive,
		bus:         bus,
		outDir:      outDir,
		log:         log.With().Str("service", "memo").Logger(),
	}
}

// CreateMemo researches one ticker end to end and returns the compiled memo.
// The error return covers input validation only; everything downstream
// degrades instead of failing.
func (s *Service) CreateMemo(ctx context.Context, ticker string) (*domain.Memo, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	defer utils.OperationTimer("create_memo", s.log)()

	started := time.Now()
	s.emit(events.MemoStarted, map[string]interface{}{"ticker": ticker})
	s.log.Info().Str("ticker", ticker).Msg("Memo pipeline started")

	brief := s.coordinator.ResearchBrief(ctx, ticker)

	sections := map[string]string{"risk_analysis": brief.RiskBlock}
	addenda := make([]string, 0, len(s.annotators))
	for _, annotator := range s.annotators {
		note := annotator.Annotate(ctx, ticker)
		addenda = append(addenda, note)
		sections[annotator.Name()] = note
	}
	if len(s.annotators) > 0 {
		s.emit(events.NotesAnnotated, map[string]interface{}{"ticker": ticker, "count": len(addenda)})
	}

	body := CompileMemo(ticker, brief, addenda)
	s.emit(events.MemoCompiled, map[string]interface{}{"ticker": ticker, "bytes": len(body)})

	m := &domain.Memo{
		ID:        uuid.NewString(),
		Ticker:    ticker,
		Body:      body,
		Sections:  sections,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Save(m); err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Memo persist failed")
		s.emitError(err, map[string]interface{}{"ticker": ticker, "stage": "persist"})
	} else {
		s.emit(events.MemoPersisted, map[string]interface{}{"ticker": ticker, "id": m.ID})
	}

	if path, err := s.writeOutFile(m); err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Memo out file write failed")
		s.emitError(err, map[string]interface{}{"ticker": ticker, "stage": "out_file"})
	} else {
		m.Path = path
	}

	if s.archive != nil {
		if url, err := s.archive.UploadMemo(ctx, m); err != nil {
			s.log.Error().Err(err).Str("ticker", ticker).Msg("Memo archive upload failed")
			s.emitError(err, map[string]interface{}{"ticker": ticker, "stage": "archive"})
		} else {
			m.ArchiveURL = url
			s.emit(events.MemoArchived, map[string]interface{}{"ticker": ticker, "url": url})
		}
	}

	if m.Path != "" || m.ArchiveURL != "" {
		if err := s.repo.UpdateArtifacts(m.ID, m.Path, m.ArchiveURL); err != nil {
			s.log.Warn().Err(err).Str("id", m.ID).Msg("Memo artifact update failed")
		}
	}

	s.log.Info().
		Str("ticker", ticker).
		Str("id", m.ID).
		Dur("elapsed", time.Since(started)).
		Msg("Memo pipeline finished")

	return m, nil
}

// writeOutFile writes the memo Markdown under the out directory as
// memo_{TICKER}_{date}.md and returns the path.
func (s *Service) writeOutFile(m *domain.Memo) (string, error) {
	if err := os.MkdirAll(s.outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create out directory: %w", err)
	}

	name := fmt.Sprintf("memo_%s_%s.md", m.Ticker, m.CreatedAt.Format("2006-01-02"))
	path := filepath.Join(s.outDir, name)
	if err := os.WriteFile(path, []byte(m.Body), 0644); err != nil {
		return "", fmt.Errorf("failed to write memo file: %w", err)
	}
	return path, nil
}

// Get fetches one persisted memo.
func (s *Service) Get(id string) (*domain.Memo, error) {
	return s.repo.Get(id)
}

// List returns recent memos, newest first.
func (s *Service) List(limit int) ([]*domain.Memo, error) {
	return s.repo.List(limit)
}

func (s *Service) emit(eventType events.EventType, data map[string]interface{}) {
	if s.bus != nil {
		s.bus.Emit(eventType, "memo", data)
	}
}

func (s *Service) emitError(err error, context map[string]interface{}) {
	if s.bus != nil {
		s.bus.EmitError("memo", err, context)
	}
}
