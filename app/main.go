package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventcomb/eventcomb/app/api"
	"github.com/eventcomb/eventcomb/app/cfg"
	"github.com/eventcomb/eventcomb/app/database"
	"github.com/eventcomb/eventcomb/app/dedupe"
	"github.com/eventcomb/eventcomb/app/importer"
	"github.com/eventcomb/eventcomb/app/machinetag"
	"github.com/eventcomb/eventcomb/app/sources"
	"github.com/eventcomb/eventcomb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Event Comb server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	sourceRepo := database.NewSourceRepository(db)
	eventRepo := database.NewEventRepository(db)
	venueRepo := database.NewVenueRepository(db)
	tagRepo := database.NewTagRepository(db)

	checker := dedupe.NewChecker(database.NewDedupeStore(db),
		dedupe.Profile{
			Kind: database.KindEvent,
			Fields: []string{"title", "description", "url", "start_time",
				"end_time", "venue_id", "venue_details"},
		},
		dedupe.Profile{
			Kind: database.KindVenue,
			Fields: []string{"title", "description", "address", "street_address",
				"locality", "region", "postal_code", "country", "email",
				"telephone", "url"},
		},
	)

	resolver := machinetag.NewResolver(func(tag string) *time.Time {
		t, err := tagRepo.EarliestTagged(tag)
		if err != nil {
			slog.Warn("Failed to date archive snapshot", "tag", tag, "error", err)
			return nil
		}
		return t
	})
	if appCfg.MachineTagFile != "" {
		if err := resolver.LoadOverrides(appCfg.MachineTagFile); err != nil {
			slog.Error("Failed to load machine tag overrides", "path", appCfg.MachineTagFile, "error", err)
			os.Exit(1)
		}
	}

	fetcher := importer.NewFetcher(time.Duration(appCfg.FetchTimeout)*time.Second, appCfg.UserAgent)

	icalDecoder := importer.NewICalendarDecoder(fetcher, appCfg.SkipOldEvents)
	registry := importer.NewRegistry(
		icalDecoder,
		importer.NewHCalendarDecoder(fetcher),
		importer.NewRSSDecoder(fetcher, appCfg.SkipOldEvents),
		importer.NewMeetupDecoder(fetcher, icalDecoder, appCfg.MeetupAPIKey),
		importer.NewFacebookDecoder(fetcher, appCfg.FacebookToken),
		importer.NewPlancastDecoder(fetcher),
	)

	imp := importer.NewImporter(registry, checker, eventRepo, venueRepo, tagRepo, nil)

	configCache := sources.NewConfigCache(appCfg.SourcesDir, registry.Labels())
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load source configurations", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Source configurations loaded", "count", configCache.GetConfigCount())

	httpClient := &http.Client{Timeout: time.Duration(appCfg.FetchTimeout) * time.Second}
	extractor := importer.NewDescriptionExtractor()

	scheduler := tasks.NewScheduler(configCache, sourceRepo, eventRepo, httpClient, imp, extractor)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval_seconds", appCfg.SchedulerInterval)

	handler := api.NewHandler(configCache, sourceRepo, eventRepo, venueRepo, tagRepo,
		checker, imp, resolver, scheduler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
