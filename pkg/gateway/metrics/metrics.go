// Package metrics exposes Prometheus instrumentation for the meeting engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// transcriptionDuration records how long a detached audio window took to
	// transcribe, from hand-off to transcript append.
	transcriptionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meeting_transcription_duration_seconds",
			Help:    "Duration from audio window hand-off to transcript append",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// suggestionDuration records end-to-end suggestion latency, from request
	// arrival to admin broadcast.
	suggestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meeting_suggestion_duration_seconds",
			Help:    "Duration from suggestion request to admin broadcast",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// transcriptionFailures counts transcription attempts that ended in a
	// collaborator error.
	transcriptionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meeting_transcription_failures_total",
			Help: "Total number of failed transcription attempts",
		},
	)

	// partitionQueryFailures counts knowledge-base partition queries that
	// failed or timed out during suggestion fan-out.
	// Labels:
	//   - partition: Knowledge-base partition name (e.g., "cms-medicare")
	partitionQueryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meeting_partition_query_failures_total",
			Help: "Total number of failed knowledge-base partition queries",
		},
		[]string{"partition"},
	)

	// activeMeetings tracks the number of meetings currently held in memory.
	activeMeetings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meeting_active_total",
			Help: "Number of meetings currently active",
		},
	)
)

func init() {
	prometheus.MustRegister(transcriptionDuration)
	prometheus.MustRegister(suggestionDuration)
	prometheus.MustRegister(transcriptionFailures)
	prometheus.MustRegister(partitionQueryFailures)
	prometheus.MustRegister(activeMeetings)
}

// ObserveTranscriptionDuration records one completed transcription window.
func ObserveTranscriptionDuration(seconds float64) {
	transcriptionDuration.Observe(seconds)
}

// ObserveSuggestionDuration records one completed suggestion request.
func ObserveSuggestionDuration(seconds float64) {
	suggestionDuration.Observe(seconds)
}

// RecordTranscriptionFailure records a failed transcription attempt.
func RecordTranscriptionFailure() {
	transcriptionFailures.Inc()
}

// RecordPartitionQueryFailure records a failed partition query.
func RecordPartitionQueryFailure(partition string) {
	partitionQueryFailures.WithLabelValues(partition).Inc()
}

// SetActiveMeetings updates the active meeting gauge.
func SetActiveMeetings(n int) {
	activeMeetings.Set(float64(n))
}
