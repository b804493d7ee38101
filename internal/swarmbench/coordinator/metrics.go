package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/swarmbench/swarmbench/internal/swarmbench/domain"
	"github.com/swarmbench/swarmbench/internal/swarmbench/metrics"
)

var (
	clustersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: metrics.Prefix + "clusters_created_total",
		Help: "Number of cluster provisioning operations triggered",
	})
	clustersDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: metrics.Prefix + "clusters_deleted_total",
		Help: "Number of cluster deletion operations triggered",
	})
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: metrics.Prefix + "runs_started_total",
		Help: "Number of load test runs triggered",
	})
	runsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: metrics.Prefix + "runs_failed_total",
		Help: "Number of load test runs that failed to start",
	})
	resultsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: metrics.Prefix + "results_fetched_total",
		Help: "Number of result artifacts copied out of the controller pod",
	})
	runStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: metrics.Prefix + "run_status",
		Help: "Current run status, one series per known state with value 1 for the active state",
	}, []string{"status"})
)

func recordRunStatus(status domain.RunStatus) {
	for _, known := range []domain.RunStatus{
		domain.RunStatusRunning,
		domain.RunStatusFinished,
		domain.RunStatusError,
		domain.RunStatusUnknown,
	} {
		value := 0.0
		if known == status {
			value = 1.0
		}
		runStatus.WithLabelValues(string(known)).Set(value)
	}
}
