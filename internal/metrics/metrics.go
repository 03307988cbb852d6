package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Checkpoint flushes to the program-log backend, by result ("ok" or "error").
	CheckpointFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workout_timer_checkpoint_flushes_total",
			Help: "Checkpoint flushes to the program-log backend",
		},
		[]string{"result"},
	)

	ScopeSwitches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workout_timer_scope_switches_total",
			Help: "Timer scope switches (date or program navigation)",
		},
	)

	RestCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workout_timer_rest_completions_total",
			Help: "Rest countdowns that reached zero",
		},
	)

	SnapshotDecodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workout_timer_snapshot_decode_failures_total",
			Help: "Persisted timer snapshots discarded as unreadable",
		},
	)

	ActiveCoordinators = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "workout_timer_active_coordinators",
			Help: "Users with a live timer coordinator",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CheckpointFlushes,
		ScopeSwitches,
		RestCompletions,
		SnapshotDecodeFailures,
		ActiveCoordinators,
	)
}

// FlushResult converts a flush error into the result label.
func FlushResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
