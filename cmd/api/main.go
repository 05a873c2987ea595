package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ety001/steem-account-watcher/internal/api"
	"github.com/ety001/steem-account-watcher/internal/delegation"
	"github.com/ety001/steem-account-watcher/internal/models"
	"github.com/ety001/steem-account-watcher/internal/rewards"
	"github.com/ety001/steem-account-watcher/internal/steem"
	"github.com/ety001/steem-account-watcher/internal/storage"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	_ = godotenv.Load()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(log)

	config, err := models.LoadConfig(*configPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewMongoDB(config.MongoDB.URI, config.MongoDB.Database)
	if err != nil {
		log.Error("failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.CreateIndexes(ctx); err != nil {
		log.Warn("failed to create indexes", "error", err)
	}
	cancel()

	chain := steem.NewClient(config.Steem.APIURL)
	estimator := rewards.NewEstimatorClient(config.Steem.EstimatorURL)
	calculator := rewards.NewCalculator(chain, estimator, store, log)
	tracker := delegation.NewTracker(chain, log)

	handler := api.NewHandler(store, chain, calculator, tracker, log)
	router := api.SetupRoutes(handler)

	addr := fmt.Sprintf("%s:%s", config.API.Host, config.API.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("API server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server exited")
}
