package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var constLabels prometheus.Labels

func initMetrics(reg prometheus.Registerer, env string) {
	mutex.Lock()
	if !initialized {
		registerer = reg
		gauges = make(map[string]*prometheus.GaugeVec)
		counters = make(map[string]*prometheus.CounterVec)
		histograms = make(map[string]*prometheus.HistogramVec)
		if env != "" {
			constLabels = prometheus.Labels{labelEnv: env}
		}
		initialized = true
	}
	mutex.Unlock()

	registerCounter(prometheus.CounterOpts{Name: metricRequestCount, ConstLabels: constLabels}, labelMethod, labelIsSuccess)
	registerHistogram(prometheus.HistogramOpts{Name: metricRequestLatency, ConstLabels: constLabels}, labelMethod, labelIsSuccess)
	registerCounter(prometheus.CounterOpts{Name: metricChainCallCount, ConstLabels: constLabels}, labelChain, labelMethod, labelIsSuccess)
	registerCounter(prometheus.CounterOpts{Name: metricTaskStateCount, ConstLabels: constLabels}, labelDirection, labelState)
	registerCounter(prometheus.CounterOpts{Name: metricTaskResultCount, ConstLabels: constLabels}, labelDirection, labelResult)
	registerHistogram(prometheus.HistogramOpts{Name: metricSettlementDuration, ConstLabels: constLabels}, labelDirection, labelResult)
	registerGauge(prometheus.GaugeOpts{Name: metricAccumulatorSize, ConstLabels: constLabels}, labelDirection)
	registerGauge(prometheus.GaugeOpts{Name: metricHaltedDirections, ConstLabels: constLabels}, labelDirection)
	registerCounter(prometheus.CounterOpts{Name: metricSynchronizerEventCount, ConstLabels: constLabels}, labelChain, labelEventType)
	registerGauge(prometheus.GaugeOpts{Name: metricLastSyncedBlockNum, ConstLabels: constLabels}, labelChain)
	registerGauge(prometheus.GaugeOpts{Name: metricLatestBlockNum, ConstLabels: constLabels}, labelChain)
}

// RecordRequest increments the request count for the method
func RecordRequest(method string, isSuccess bool) {
	counterInc(metricRequestCount, map[string]string{labelMethod: method, labelIsSuccess: strconv.FormatBool(isSuccess)})
}

// RecordRequestLatency records the latency histogram in milliseconds
func RecordRequestLatency(method string, latency time.Duration, isSuccess bool) {
	histogramObserve(metricRequestLatency, float64(latency.Milliseconds()), map[string]string{labelMethod: method, labelIsSuccess: strconv.FormatBool(isSuccess)})
}

// RecordChainCall counts one contract call or transaction submission against a chain
func RecordChainCall(chain, method string, isSuccess bool) {
	counterInc(metricChainCallCount, map[string]string{labelChain: chain, labelMethod: method, labelIsSuccess: strconv.FormatBool(isSuccess)})
}

// RecordTaskState counts a settlement task entering a state
func RecordTaskState(direction, state string) {
	counterInc(metricTaskStateCount, map[string]string{labelDirection: direction, labelState: state})
}

// RecordTaskResult counts a terminal settlement result and records how long the task took
func RecordTaskResult(direction, result string, dur time.Duration) {
	labels := map[string]string{labelDirection: direction, labelResult: result}
	counterInc(metricTaskResultCount, labels)
	histogramObserve(metricSettlementDuration, dur.Seconds(), labels)
}

func RecordAccumulatorSize(direction string, size int) {
	gaugeSet(metricAccumulatorSize, float64(size), map[string]string{labelDirection: direction})
}

// RecordDirectionHalted sets the halted flag of a direction
func RecordDirectionHalted(direction string, halted bool) {
	var v float64
	if halted {
		v = 1
	}
	gaugeSet(metricHaltedDirections, v, map[string]string{labelDirection: direction})
}

func RecordSynchronizerEvent(chain, eventType string) {
	counterInc(metricSynchronizerEventCount, map[string]string{labelChain: chain, labelEventType: eventType})
}

func RecordLastSyncedBlock(chain string, blockNum uint64) {
	gaugeSet(metricLastSyncedBlockNum, float64(blockNum), map[string]string{labelChain: chain})
}

func RecordLatestBlock(chain string, blockNum uint64) {
	gaugeSet(metricLatestBlockNum, float64(blockNum), map[string]string{labelChain: chain})
}
