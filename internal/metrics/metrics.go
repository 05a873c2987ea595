// Package metrics holds the prometheus collectors shared by the daemons.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksProcessed counts blocks fully persisted by the listener.
	BlocksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watcher_blocks_processed_total",
		Help: "Total number of blocks processed",
	})

	// OperationsStored counts operation records appended per account.
	OperationsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_operations_stored_total",
		Help: "Total number of operation records stored",
	}, []string{"account"})

	// FetchErrors counts transient chain source failures.
	FetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watcher_fetch_errors_total",
		Help: "Total number of chain fetch errors",
	})

	// PersistErrors counts storage failures that aborted a block.
	PersistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watcher_persist_errors_total",
		Help: "Total number of storage errors",
	})

	// EstimatorErrors counts failed reward estimator calls.
	EstimatorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watcher_estimator_errors_total",
		Help: "Total number of reward estimator failures",
	})

	// LastProcessedBlock is the height of the last fully persisted block.
	LastProcessedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watcher_last_processed_block",
		Help: "Height of the last fully processed block",
	})

	// ChainHeadBlock is the last irreversible block reported by the node.
	ChainHeadBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watcher_chain_head_block",
		Help: "Last irreversible block height reported by the chain",
	})
)
