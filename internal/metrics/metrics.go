package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request layer metrics
var (
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_requests_total",
		Help: "The total number of dispatched JSON-RPC calls, retries included",
	}, []string{"method"})

	RPCRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_retries_total",
		Help: "The number of JSON-RPC calls retried after a rate limit or malformed response",
	}, []string{"method", "reason"})

	RPCRequestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_request_failures_total",
		Help: "The number of JSON-RPC calls that failed after retries or with a non-retryable error",
	}, []string{"method"})

	RPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rpc_request_duration_seconds",
		Help:    "Time taken by a single JSON-RPC round trip",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// Analyzer metrics
var (
	AnalyzedBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_blocks_total",
		Help: "The number of analyzed blocks by outcome",
	}, []string{"chain", "status"})

	AnalyzedTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_transactions_total",
		Help: "The number of transactions in analyzed blocks, failed blocks included",
	}, []string{"chain"})

	DetectedConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_conflicts_total",
		Help: "The number of detected conflicts by type",
	}, []string{"chain", "type"})

	BlockAnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analyzer_block_duration_seconds",
		Help:    "Time taken to analyze a single block",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"chain"})
)

// Orchestrator metrics
var (
	ChainHead = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chain_head_block",
		Help: "The latest block number reported by the chain while its window is analyzed",
	}, []string{"chain"})

	DependencyRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "analyzer_dependency_ratio",
		Help: "The running share of transactions conflicting with another transaction in the same block",
	}, []string{"chain"})

	BlocksRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "analyzer_blocks_remaining",
		Help: "The number of blocks in the window not analyzed yet",
	}, []string{"chain"})
)

// Report metrics
var (
	ReportPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_publish_duration_seconds",
		Help:    "Time taken to publish the report to a sink",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
)
