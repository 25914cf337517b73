// Package metrics collects per-invocation scheduler metrics and writes them
// in the node_exporter textfile format, since the process exits before any
// scraper could reach it.
package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "cronrunner"

// Recorder holds the gauges of one invocation.
type Recorder struct {
	registry *prometheus.Registry

	lastRun      *prometheus.GaugeVec
	lastSuccess  *prometheus.GaugeVec
	dispatched   prometheus.Gauge
	skipped      prometheus.Gauge
	configErrors prometheus.Gauge
	duration     prometheus.Gauge
	lockBusy     prometheus.Gauge
}

// New registers the scheduler gauges on a private registry.
func New(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "job_last_run_timestamp_seconds",
				Help:      "Unix time of the job's last completed dispatch",
			},
			[]string{"job"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "job_last_success",
				Help:      "1 if the job's last dispatch succeeded, 0 otherwise",
			},
			[]string{"job"},
		),
		dispatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_dispatched",
			Help:      "Jobs dispatched by the last invocation",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_skipped",
			Help:      "Jobs not yet due in the last invocation",
		}),
		configErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_config_errors",
			Help:      "Jobs skipped because of a configuration error in the last invocation",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of the last invocation",
		}),
		lockBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lock_busy",
			Help:      "1 if the last invocation aborted because the run lock was held",
		}),
	}

	r.registry.MustRegister(
		r.lastRun,
		r.lastSuccess,
		r.dispatched,
		r.skipped,
		r.configErrors,
		r.duration,
		r.lockBusy,
	)
	return r
}

// ObserveRecord exports the history of a job that did not run this time.
func (r *Recorder) ObserveRecord(job string, lastRun time.Time) {
	if lastRun.IsZero() {
		return
	}
	r.lastRun.WithLabelValues(job).Set(float64(lastRun.Unix()))
}

// JobDispatched records a completed dispatch.
func (r *Recorder) JobDispatched(job string, finished time.Time, ok bool) {
	r.dispatched.Inc()
	r.lastRun.WithLabelValues(job).Set(float64(finished.Unix()))
	success := 0.0
	if ok {
		success = 1
	}
	r.lastSuccess.WithLabelValues(job).Set(success)
}

// JobSkipped records a job that was not due.
func (r *Recorder) JobSkipped() { r.skipped.Inc() }

// JobConfigError records a job skipped for a configuration error.
func (r *Recorder) JobConfigError() { r.configErrors.Inc() }

// LockBusy records that the invocation aborted on the lock.
func (r *Recorder) LockBusy() { r.lockBusy.Set(1) }

// InvocationDuration records the invocation wall time.
func (r *Recorder) InvocationDuration(d time.Duration) { r.duration.Set(d.Seconds()) }

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// WriteTextfile atomically writes every metric to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
