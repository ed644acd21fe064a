package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fetcharr/fetcharr/internal/api"
	"github.com/fetcharr/fetcharr/internal/autosearch"
	"github.com/fetcharr/fetcharr/internal/blocklist"
	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/database"
	"github.com/fetcharr/fetcharr/internal/decisioning"
	"github.com/fetcharr/fetcharr/internal/history"
	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/grab"
	"github.com/fetcharr/fetcharr/internal/indexer/scoring"
	"github.com/fetcharr/fetcharr/internal/indexer/search"
	"github.com/fetcharr/fetcharr/internal/library"
	"github.com/fetcharr/fetcharr/internal/logger"
	"github.com/fetcharr/fetcharr/internal/scheduler"
)

func main() {
	// .env values feed the FETCHARR_* config layer; a missing file is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting fetcharr")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Stores.
	profiles := scoring.NewCachedStore(scoring.NewSQLStore(db))
	libraryStore := library.NewStore(db, log.Logger)
	blocklistService := blocklist.NewService(db, log.Logger)

	// Adapters are registered by protocol integrations at startup; the core
	// runs fine with none configured.
	var provider indexer.StaticProvider

	searchService := search.NewService(provider, profiles, cfg.Search, log.Logger)

	downloader := grab.NewBlackholeDownloader(cfg.Download.WatchDir, log.Logger)
	grabService := grab.NewService(downloader, log.Logger)
	historyService := history.NewService(db, log.Logger)
	grabService.SetHistory(historyService)

	chain := decisioning.DefaultChain(blocklistService, log.Logger)

	autosearchService := autosearch.NewService(
		libraryStore,
		searchService,
		grabService,
		profiles,
		chain,
		cfg.Search,
		log.Logger,
	)
	autosearchService.SetBackoffTracker(autosearch.NewBackoffTracker(db))

	sched, err := scheduler.New(scheduler.NewTaskStateStore(db), cfg.Scheduler, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := scheduler.RegisterSearchTasks(sched, autosearchService, cfg.Scheduler); err != nil {
		log.Fatal().Err(err).Msg("failed to register scheduler tasks")
	}
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	server := api.NewServer(api.Services{
		Search:     searchService,
		Profiles:   profiles,
		Blocklist:  blocklistService,
		Autosearch: autosearchService,
		Scheduler:  sched,
		History:    historyService,
	}, log.Logger)

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil {
			log.Info().Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("fetcharr stopped")
}
