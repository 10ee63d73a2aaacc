package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duel",
		Name:      "ticks_total",
		Help:      "Evaluation passes run, by tick kind and outcome",
	}, []string{"tick", "outcome"})

	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "duel",
		Name:      "tick_duration_seconds",
		Help:      "Duration of evaluation passes in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tick"})

	externalQueryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duel",
		Name:      "external_query_failures_total",
		Help:      "Failed submission-source queries; retried on the next tick",
	}, []string{"tick"})

	challengeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duel",
		Name:      "challenge_transitions_total",
		Help:      "Challenges that left the active state, by terminal status",
	}, []string{"status"})

	arenaSolves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "duel",
		Name:      "arena_solves_total",
		Help:      "Arena solves recorded",
	})

	sinkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "duel",
		Name:      "sink_failures_total",
		Help:      "Summary posts that failed (best effort)",
	})
)

// ObserveTick records one pass of the named tick.
func ObserveTick(tick string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ticksTotal.WithLabelValues(tick, outcome).Inc()
	tickDuration.WithLabelValues(tick).Observe(time.Since(start).Seconds())
}

func ExternalQueryFailed(tick string) {
	externalQueryFailures.WithLabelValues(tick).Inc()
}

func ChallengeTransitioned(status string) {
	challengeTransitions.WithLabelValues(status).Inc()
}

func ArenaSolvesRecorded(n int) {
	arenaSolves.Add(float64(n))
}

func SinkFailed() {
	sinkFailures.Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
