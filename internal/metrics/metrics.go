// Package metrics registers the Prometheus instruments shared by the
// watcher, detector, and api binaries. Everything is registered on the
// default registry via promauto; cmd/api exposes /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mempool tap.
	PendingSeen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapscan_pending_hashes_total",
		Help: "Pending transaction hashes received from the WSS subscription",
	})
	PendingDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscan_pending_dropped_total",
		Help: "Pending hashes dropped before decoding",
	}, []string{"reason"}) // hydrate_failed, already_mined, startup_backlog, not_allowlisted

	// Decoders.
	SwapsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscan_swaps_decoded_total",
		Help: "Decoded swaps by router family",
	}, []string{"family"})

	// Bus.
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscan_bus_published_total",
		Help: "Messages published to the bus by topic",
	}, []string{"topic"})
	MessagesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapscan_bus_consumed_total",
		Help: "Messages read from the transactions topic",
	})
	MessagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscan_bus_skipped_total",
		Help: "Consumed messages skipped before evaluation",
	}, []string{"reason"}) // stale, already_mined, duplicate, malformed

	// Evaluator.
	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscan_verdicts_total",
		Help: "Evaluator verdicts by outcome",
	}, []string{"outcome"}) // detected, expired, rejected
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapscan_evaluation_seconds",
		Help:    "End-to-end evaluator latency per swap",
		Buckets: prometheus.DefBuckets,
	})

	// RPC pool.
	RPCRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscan_rpc_retries_total",
		Help: "JSON-RPC retries after timeout-class failures",
	}, []string{"op"})

	// Caches.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscan_cache_lookups_total",
		Help: "Cache lookups by cache name and source of the answer",
	}, []string{"cache", "source"}) // source: db, chain, miss

	// Cleanup loop.
	CleanupDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscan_cleanup_deleted_total",
		Help: "Opportunity rows deleted by the cleanup loop",
	}, []string{"pass"}) // expired, pending, flagged, deadline
)
