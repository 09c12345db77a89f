// Package main is the entry point for the onepager research service. It
// wires the market data and filings clients, the research pipeline (facts,
// risk, annotators, memo compiler, screener), the HTTP API, and the
// background scheduler, then runs until interrupted.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/aristath/onepager/internal/archive"
	"github.com/aristath/onepager/internal/clientdata"
	"github.com/aristath/onepager/internal/clients/edgar"
	"github.com/aristath/onepager/internal/clients/textgen"
	"github.com/aristath/onepager/internal/clients/yahoo"
	"github.com/aristath/onepager/internal/config"
	"github.com/aristath/onepager/internal/database"
	"github.com/aristath/onepager/internal/domain"
	"github.com/aristath/onepager/internal/events"
	"github.com/aristath/onepager/internal/research/annotators"
	"github.com/aristath/onepager/internal/research/memo"
	"github.com/aristath/onepager/internal/research/risk"
	"github.com/aristath/onepager/internal/research/screen"
	"github.com/aristath/onepager/internal/scheduler"
	"github.com/aristath/onepager/internal/server"
	"github.com/aristath/onepager/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting onepager")

	ctx := context.Background()

	// Databases: research.db holds memos and screens, cache.db holds
	// refetchable upstream snapshots.
	researchDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "research.db"),
		Profile: database.ProfileStandard,
		Name:    "research",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open research database")
	}
	defer researchDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	if err := researchDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate research database")
	}
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	// Upstream clients share the snapshot cache.
	cacheRepo := clientdata.NewRepository(cacheDB.Conn())

	market := yahoo.NewClient(
		yahoo.WithCache(cacheRepo),
		yahoo.WithLogger(log),
		yahoo.WithSnapshotTTL(time.Duration(cfg.SnapshotTTLHours)*time.Hour),
	)

	filings := edgar.NewClient(cfg.SECUserAgent,
		edgar.WithCache(cacheRepo),
		edgar.WithLogger(log),
		edgar.WithLimiter(rate.NewLimiter(rate.Limit(cfg.SECMaxPerSecond), 1)),
	)

	// Text generation is optional. Without it every analysis degrades to
	// its deterministic fallback.
	var generator domain.TextGenerator
	if cfg.TextGenEnabled() {
		gen, err := textgen.New(ctx, textgen.Config{
			Model:           cfg.TextGenModel,
			AnthropicAPIKey: cfg.AnthropicAPIKey,
			GeminiAPIKey:    cfg.GeminiAPIKey,
			MaxPerMinute:    cfg.TextGenMaxPerMin,
			MaxRetries:      cfg.TextGenMaxRetries,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("Text generation disabled, using deterministic analysis")
		} else {
			generator = gen
			log.Info().Str("model", gen.Model()).Msg("Text generation enabled")
		}
	} else {
		log.Info().Msg("No generative API key configured, using deterministic analysis")
	}

	// Research pipeline.
	bus := events.NewBus(log)
	riskAnalyzer := risk.New(market, filings, generator, log)
	techNotes := annotators.NewTechChecklist(market, generator, log)
	finsNotes := annotators.NewFinancialsChecklist(market, generator, log)
	notes := []annotators.Annotator{
		techNotes,
		finsNotes,
		annotators.NewQuant(market, generator, log),
	}

	// Archive is optional; an empty bucket leaves it off.
	var memoArchive memo.Archiver
	var screenArchive screen.Archiver
	if cfg.ArchiveBucket != "" {
		uploader, err := archive.New(ctx, archive.Config{
			Bucket:    cfg.ArchiveBucket,
			Region:    cfg.ArchiveRegion,
			Prefix:    cfg.ArchivePrefix,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize archive uploader")
		}
		memoArchive = uploader
		screenArchive = uploader
		log.Info().Str("bucket", cfg.ArchiveBucket).Msg("Archive enabled")
	}

	coordinator := memo.NewCoordinator(market, filings, riskAnalyzer, bus, log)
	memos := memo.NewService(coordinator, notes,
		memo.NewRepository(researchDB.Conn(), log),
		memoArchive, bus, cfg.OutDir, log)

	screens := screen.NewService(market,
		screen.NewRepository(researchDB.Conn(), log),
		screenArchive, bus, cfg.OutDir,
		screen.Defaults{
			Universe:    cfg.ScreenUniverse,
			MinFCFYield: cfg.ScreenMinFCFYield,
			MinROIC:     cfg.ScreenMinROIC,
		}, log)

	// Background jobs.
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.ScreenSchedule, scheduler.NewScreenRefreshJob(screens, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register screen refresh job")
	}
	if err := sched.AddJob(cfg.CleanupSchedule, clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server.
	srv := server.New(server.Config{
		Port:       cfg.Port,
		Log:        log,
		Config:     cfg,
		DevMode:    cfg.DevMode,
		ResearchDB: researchDB,
		CacheDB:    cacheDB,
		Market:     market,
		Risk:       riskAnalyzer,
		Tech:       techNotes,
		Financials: finsNotes,
		Memos:      memos,
		Screens:    screens,
		Bus:        bus,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
