package metrics

const (
	defaultMetricsEndpoint = "/metrics"
)

// Metric types
const (
	typeGauge     = "gauge"
	typeCounter   = "counter"
	typeHistogram = "histogram"
)

// Metric names and labels
const (
	prefix   = "bridge_relayer_"
	labelEnv = "env"

	prefixRequest        = prefix + "request_"
	metricRequestCount   = prefixRequest + "count"
	metricRequestLatency = prefixRequest + "latency_ms"
	labelMethod          = "method"
	labelIsSuccess       = "is_success"

	prefixChain          = prefix + "chain_"
	metricChainCallCount = prefixChain + "call_count"
	labelChain           = "chain"

	prefixTask               = prefix + "settlement_"
	metricTaskStateCount     = prefixTask + "state_count"
	metricTaskResultCount    = prefixTask + "result_count"
	metricSettlementDuration = prefixTask + "duration_sec"
	metricAccumulatorSize    = prefix + "accumulator_size"
	metricHaltedDirections   = prefix + "direction_halted"
	labelDirection           = "direction"
	labelState               = "state"
	labelResult              = "result"

	prefixSynchronizer           = prefix + "synchronizer_"
	metricSynchronizerEventCount = prefixSynchronizer + "event_count"
	metricLastSyncedBlockNum     = prefixSynchronizer + "last_synced_block_num"
	metricLatestBlockNum         = prefixSynchronizer + "latest_block_num"
	labelEventType               = "type"
)
