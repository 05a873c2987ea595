// Command backfill imports historical operations for a single account.
//
// With -start/-end it scans a block range through the same block processor
// the listener uses. Without a range it walks the account's full on-chain
// history via get_account_history, which is much faster for old accounts.
// Both paths go through the idempotent append, so re-running a backfill or
// overlapping with the live listener is safe.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/ety001/steem-account-watcher/internal/models"
	"github.com/ety001/steem-account-watcher/internal/steem"
	"github.com/ety001/steem-account-watcher/internal/storage"
	watchersync "github.com/ety001/steem-account-watcher/internal/sync"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

const historyBatchSize = 1000

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	account := flag.String("account", "", "Account name to backfill")
	startBlock := flag.Int64("start", 0, "Start block number (block range mode)")
	endBlock := flag.Int64("end", 0, "End block number (block range mode)")
	flag.Parse()

	_ = godotenv.Load()

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(log)

	if *account == "" {
		log.Error("account name is required (use -account)")
		os.Exit(1)
	}
	rangeMode := *startBlock > 0 || *endBlock > 0
	if rangeMode && (*startBlock <= 0 || *endBlock < *startBlock) {
		log.Error("invalid block range", "start", *startBlock, "end", *endBlock)
		os.Exit(1)
	}

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

	if rangeMode {
		err = backfillBlockRange(context.Background(), chain, store, *account, *startBlock, *endBlock, log)
	} else {
		err = backfillAccountHistory(context.Background(), chain, store, *account, log)
	}
	if err != nil {
		log.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

// backfillBlockRange scans blocks [start, end] and stores every operation
// acted by the target account.
func backfillBlockRange(ctx context.Context, chain *steem.Client, store storage.OperationStore, account string, start, end int64, log *slog.Logger) error {
	processor := watchersync.NewBlockProcessor([]string{account}, false)

	total := 0
	for blockNum := start; blockNum <= end; blockNum++ {
		block, err := chain.GetBlock(ctx, blockNum)
		if err != nil {
			if errors.Is(err, steem.ErrBlockNotAvailable) {
				log.Info("reached chain head", "block", blockNum)
				break
			}
			return err
		}

		for _, op := range processor.Extract(block, blockNum) {
			if _, err := store.AppendOperation(ctx, op); err != nil {
				return err
			}
			total++
		}

		if (blockNum-start+1)%1000 == 0 {
			log.Info("progress", "block", blockNum, "operations", total)
		}

		// Small delay to avoid overwhelming the API
		time.Sleep(20 * time.Millisecond)
	}

	log.Info("backfill completed", "account", account, "blocks", end-start+1, "operations", total)
	return nil
}

// backfillAccountHistory walks the account's history from index 0 upward so
// sequence numbers are assigned in chain order.
func backfillAccountHistory(ctx context.Context, chain *steem.Client, store storage.OperationStore, account string, log *slog.Logger) error {
	// The newest entry tells us how far the history goes.
	latest, err := chain.GetAccountHistory(ctx, account, -1, 0)
	if err != nil {
		return err
	}
	if len(latest) == 0 {
		log.Info("account has no history", "account", account)
		return nil
	}
	maxIndex := latest[len(latest)-1].Index

	total := 0
	for pos := int64(0); pos <= maxIndex; {
		batchEnd := pos + historyBatchSize - 1
		if batchEnd > maxIndex {
			batchEnd = maxIndex
		}

		items, err := chain.GetAccountHistory(ctx, account, batchEnd, int(batchEnd-pos))
		if err != nil {
			return err
		}

		for _, item := range items {
			if item.Index < pos {
				continue
			}
			timestamp, err := time.Parse("2006-01-02T15:04:05", item.Timestamp)
			if err != nil {
				log.Warn("skipping history entry with invalid timestamp", "index", item.Index, "value", item.Timestamp)
				continue
			}
			op := &models.AccountOperation{
				Account:   account,
				BlockNum:  item.BlockNum,
				TrxID:     item.TrxID,
				OpInTrx:   item.OpInTrx,
				OpType:    item.OpType,
				OpData:    item.OpData,
				Timestamp: timestamp,
			}
			if _, err := store.AppendOperation(ctx, op); err != nil {
				return err
			}
			total++
		}

		log.Info("progress", "history_index", batchEnd, "of", maxIndex, "operations", total)
		pos = batchEnd + 1

		time.Sleep(100 * time.Millisecond)
	}

	log.Info("backfill completed", "account", account, "operations", total)
	return nil
}
