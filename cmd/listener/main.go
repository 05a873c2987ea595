package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ety001/steem-account-watcher/internal/models"
	"github.com/ety001/steem-account-watcher/internal/steem"
	"github.com/ety001/steem-account-watcher/internal/storage"
	watchersync "github.com/ety001/steem-account-watcher/internal/sync"
	"github.com/ety001/steem-account-watcher/internal/telegram"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	lockFile := flag.String("lockfile", "/tmp/steem-account-watcher-listener.lock", "Path to lock file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; environment overrides the config file
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

	// Acquire file lock to prevent a second ingester racing on the cursor
	lockHandle, err := acquireLock(*lockFile)
	if err != nil {
		log.Error("failed to acquire lock, another listener may be running", "error", err)
		os.Exit(1)
	}
	defer releaseLock(lockHandle, *lockFile)
	log.Info("lock acquired", "path", *lockFile)

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

	var notifier *telegram.Client
	if config.Telegram.Enabled && config.Telegram.BotToken != "" && config.Telegram.ChannelID != "" {
		notifier = telegram.NewClient(config.Telegram.BotToken, config.Telegram.ChannelID)
	}

	chain := steem.NewClient(config.Steem.APIURL)
	processor := watchersync.NewBlockProcessor(config.Steem.Accounts, config.Steem.TrackAll)
	listener := watchersync.NewListener(chain, store, processor, watchersync.ListenerOptions{
		StartBlock:       config.Steem.StartBlock,
		PollInterval:     time.Duration(config.Listener.PollIntervalSeconds) * time.Second,
		MaxBackoff:       time.Duration(config.Listener.MaxBackoffSeconds) * time.Second,
		Notifier:         notifier,
		NotifyOperations: config.Telegram.NotifyOperations,
	}, log)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := listener.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("listener exited", "error", err)
		os.Exit(1)
	}

	log.Info("listener service stopped")
}

// acquireLock acquires an exclusive file lock to prevent multiple instances
func acquireLock(lockFilePath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(lockFilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	file, err := os.OpenFile(lockFilePath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := file.Truncate(0); err == nil {
		fmt.Fprintf(file, "%d\n", os.Getpid())
		file.Sync()
	}

	return file, nil
}

// releaseLock releases the file lock
func releaseLock(file *os.File, lockFilePath string) {
	if file != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		os.Remove(lockFilePath)
	}
}
