package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/JustinTDCT/ingestarr/internal/config"
	"github.com/JustinTDCT/ingestarr/internal/events"
	"github.com/JustinTDCT/ingestarr/internal/httpapi"
	"github.com/JustinTDCT/ingestarr/internal/ingest"
	"github.com/JustinTDCT/ingestarr/internal/jobs"
	"github.com/JustinTDCT/ingestarr/internal/logging"
	"github.com/JustinTDCT/ingestarr/internal/metadata"
	"github.com/JustinTDCT/ingestarr/internal/scheduler"
	"github.com/JustinTDCT/ingestarr/internal/store"
)

const bannerArt = `
  _____                    _
 |_   _|                  | |
   | |  _ __   __ _  ___  | |_ __ _ _ __ _ __
   | | | '_ \ / _' |/ _ \ | __/ _' | '__| '__|
  _| |_| | | | (_| |  __/ | || (_| | |  | |
 |_____|_| |_|\__, |\___|  \__\__,_|_|  |_|
               __/ |
              |___/
`

func main() {
	fmt.Println(bannerArt)

	logging.Configure(logging.Config{
		Level:  envOr("LOG_LEVEL", "info"),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
	})
	logger := logging.For("main")

	cfgPath := envOr("CONFIG_PATH", "/data/config.json")
	cfg, err := config.New(cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	dbPath := envOr("DATABASE_PATH", "/data/ingestarr.db")
	records, err := store.Open(dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open record store")
	}
	defer records.Close()
	logger.Info().Str("path", dbPath).Msg("record store opened")

	bus := events.New()

	newMeta := func(doc config.Document) *metadata.Client {
		limiter := rate.NewLimiter(rate.Every(250*time.Millisecond), 4)
		return metadata.New("https://api.themoviedb.org/3", doc.TMDBAPIKey, doc.TMDBLanguage, limiter)
	}

	engine := ingest.New(cfg, records, bus, newMeta)

	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	jobQueue := jobs.New(redisAddr)
	jobQueue.RegisterScanHandler(func(ctx context.Context) error {
		summary, err := engine.Scan(ctx)
		if err != nil && !errors.Is(err, ingest.ErrScanInProgress) {
			return err
		}
		logger.Info().Interface("summary", summary).Msg("scan completed")
		return nil
	})
	jobQueue.RegisterProcessFileHandler(func(ctx context.Context, recordID int64) error {
		_, err := engine.ProcessFile(ctx, recordID)
		return err
	})

	go func() {
		if err := jobQueue.Start(context.Background()); err != nil {
			logger.Error().Err(err).Msg("job queue worker stopped")
		}
	}()
	defer jobQueue.Stop()
	logger.Info().Str("redis", redisAddr).Msg("job queue started")

	triggerScan := func() error {
		return jobQueue.EnqueueUnique(jobs.TaskRunScan, jobs.ScanPayload{}, "scan-run")
	}

	driver := scheduler.New(cfg, func(ctx context.Context) error {
		return triggerScan()
	})
	driver.Start()
	defer driver.Stop()
	logger.Info().Msg("periodic scan driver started")

	api := httpapi.New(cfg, records, bus, triggerScan)
	addr := envOr("LISTEN_ADDR", ":8080")
	httpServer := &http.Server{
		Addr:    addr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("http server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
