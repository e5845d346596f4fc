package kaio

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks submission and completion statistics for a queue
type Metrics struct {
	// Submission counters
	Submissions atomic.Uint64 // Reads accepted by the kernel
	Rejections  atomic.Uint64 // Reads rejected at submission

	// Completion counters
	Completions atomic.Uint64 // Callbacks delivered
	ReadBytes   atomic.Uint64 // Bytes reported by successful completions
	ReadErrors  atomic.Uint64 // Completions carrying a negative result
	UnknownTags atomic.Uint64 // Completions matching no outstanding request

	// In-flight statistics
	InFlightTotal atomic.Uint64 // Cumulative in-flight samples
	InFlightCount atomic.Uint64 // Number of in-flight measurements
	MaxInFlight   atomic.Uint32 // Maximum observed in-flight count

	// Dispatcher statistics
	DrainPasses  atomic.Uint64 // Readiness callbacks handled
	DrainEvents  atomic.Uint64 // Completions reaped across all passes
	MaxDrainSize atomic.Uint32 // Most completions reaped in one pass

	// Performance tracking
	TotalLatencyNs atomic.Uint64 // Cumulative submit-to-callback latency in nanoseconds
	OpCount        atomic.Uint64 // Total latency samples

	// Latency histogram buckets (cumulative)
	// Each bucket[i] contains the count of operations with latency <= LatencyBuckets[i]
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Queue lifecycle
	StartTime atomic.Int64 // Queue creation timestamp (UnixNano)
	StopTime  atomic.Int64 // Queue close timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSubmit records a submission attempt
func (m *Metrics) RecordSubmit(accepted bool) {
	if accepted {
		m.Submissions.Add(1)
	} else {
		m.Rejections.Add(1)
	}
}

// RecordCompletion records a delivered completion
func (m *Metrics) RecordCompletion(result int64, latencyNs uint64) {
	m.Completions.Add(1)
	if result >= 0 {
		m.ReadBytes.Add(uint64(result))
	} else {
		m.ReadErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordUnknownTag records a completion that matched no request
func (m *Metrics) RecordUnknownTag() {
	m.UnknownTags.Add(1)
}

// RecordInFlight records the current in-flight count
func (m *Metrics) RecordInFlight(depth uint32) {
	m.InFlightTotal.Add(uint64(depth))
	m.InFlightCount.Add(1)
	storeMax(&m.MaxInFlight, depth)
}

// RecordDrain records one dispatcher pass and the completions it reaped
func (m *Metrics) RecordDrain(events uint32) {
	m.DrainPasses.Add(1)
	m.DrainEvents.Add(uint64(events))
	storeMax(&m.MaxDrainSize, events)
}

func storeMax(v *atomic.Uint32, n uint32) {
	for {
		current := v.Load()
		if n <= current {
			return
		}
		if v.CompareAndSwap(current, n) {
			return
		}
	}
}

// recordLatency records operation latency and updates histogram
func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	// Update histogram buckets (cumulative)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the queue as closed
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics
type MetricsSnapshot struct {
	Submissions uint64
	Rejections  uint64
	Completions uint64
	ReadBytes   uint64
	ReadErrors  uint64
	UnknownTags uint64

	// In-flight statistics
	AvgInFlight float64
	MaxInFlight uint32

	// Dispatcher
	DrainPasses      uint64
	AvgEventsPerPass float64
	MaxDrainSize     uint32

	// Performance
	AvgLatencyNs uint64
	UptimeNs     uint64

	// Latency percentiles (in nanoseconds)
	LatencyP50Ns  uint64 // 50th percentile (median)
	LatencyP99Ns  uint64 // 99th percentile
	LatencyP999Ns uint64 // 99.9th percentile

	// Histogram bucket counts (cumulative)
	LatencyHistogram [numLatencyBuckets]uint64

	// Computed statistics
	ReadIOPS      float64 // Completions per second
	ReadBandwidth float64 // Bytes per second
	ErrorRate     float64 // Percentage of completions with a negative result
}

// Snapshot creates a point-in-time snapshot of metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Submissions:  m.Submissions.Load(),
		Rejections:   m.Rejections.Load(),
		Completions:  m.Completions.Load(),
		ReadBytes:    m.ReadBytes.Load(),
		ReadErrors:   m.ReadErrors.Load(),
		UnknownTags:  m.UnknownTags.Load(),
		MaxInFlight:  m.MaxInFlight.Load(),
		DrainPasses:  m.DrainPasses.Load(),
		MaxDrainSize: m.MaxDrainSize.Load(),
	}

	if count := m.InFlightCount.Load(); count > 0 {
		snap.AvgInFlight = float64(m.InFlightTotal.Load()) / float64(count)
	}

	if snap.DrainPasses > 0 {
		snap.AvgEventsPerPass = float64(m.DrainEvents.Load()) / float64(snap.DrainPasses)
	}

	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.ReadIOPS = float64(snap.Completions) / uptimeSeconds
		snap.ReadBandwidth = float64(snap.ReadBytes) / uptimeSeconds
	}

	if snap.Completions > 0 {
		snap.ErrorRate = float64(snap.ReadErrors) / float64(snap.Completions) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	// Latency exceeds all buckets
	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing)
func (m *Metrics) Reset() {
	m.Submissions.Store(0)
	m.Rejections.Store(0)
	m.Completions.Store(0)
	m.ReadBytes.Store(0)
	m.ReadErrors.Store(0)
	m.UnknownTags.Store(0)
	m.InFlightTotal.Store(0)
	m.InFlightCount.Store(0)
	m.MaxInFlight.Store(0)
	m.DrainPasses.Store(0)
	m.DrainEvents.Store(0)
	m.MaxDrainSize.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer interface allows pluggable metrics collection
type Observer interface {
	// ObserveSubmit is called for each SubmitRead
	ObserveSubmit(accepted bool)

	// ObserveCompletion is called before each callback
	ObserveCompletion(result int64, latencyNs uint64)

	// ObserveDrain is called once per dispatcher pass
	ObserveDrain(events uint32)

	// ObserveInFlight is called after each submission with the in-flight count
	ObserveInFlight(depth uint32)

	// ObserveUnknownTag is called for completions matching no request
	ObserveUnknownTag()
}

// NoOpObserver is a no-op implementation of Observer
type NoOpObserver struct{}

func (NoOpObserver) ObserveSubmit(bool)              {}
func (NoOpObserver) ObserveCompletion(int64, uint64) {}
func (NoOpObserver) ObserveDrain(uint32)             {}
func (NoOpObserver) ObserveInFlight(uint32)          {}
func (NoOpObserver) ObserveUnknownTag()              {}

// MetricsObserver implements Observer using the built-in Metrics
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSubmit(accepted bool) {
	o.metrics.RecordSubmit(accepted)
}

func (o *MetricsObserver) ObserveCompletion(result int64, latencyNs uint64) {
	o.metrics.RecordCompletion(result, latencyNs)
}

func (o *MetricsObserver) ObserveDrain(events uint32) {
	o.metrics.RecordDrain(events)
}

func (o *MetricsObserver) ObserveInFlight(depth uint32) {
	o.metrics.RecordInFlight(depth)
}

func (o *MetricsObserver) ObserveUnknownTag() {
	o.metrics.RecordUnknownTag()
}

// Compile-time interface check
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
