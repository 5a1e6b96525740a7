package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/garyjia/yacht-customization/internal/application/workflow"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

const namespace = "yacht_customization"

// Recorder is the Prometheus implementation of workflow.Metrics. It also
// records HTTP request latency for the gin middleware.
type Recorder struct {
	transitions   *prometheus.CounterVec
	failures      *prometheus.CounterVec
	gatesOpened   prometheus.Counter
	gatesResolved *prometheus.CounterVec
	gatesPending  prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// NewRecorder registers the workflow metrics on reg. A nil reg uses the
// default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Committed workflow transitions by trigger and status pair.",
		}, []string{"trigger", "from", "to"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "command_failures_total",
			Help:      "Rejected or failed workflow commands by operation and error kind.",
		}, []string{"operation", "kind"}),
		gatesOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commercial_gate",
			Name:      "opened_total",
			Help:      "Commercial approval gates opened.",
		}),
		gatesResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commercial_gate",
			Name:      "resolved_total",
			Help:      "Commercial approval gates resolved by decision.",
		}, []string{"decision"}),
		gatesPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "commercial_gate",
			Name:      "pending",
			Help:      "Commercial approval gates opened and not yet resolved since process start.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (r *Recorder) TransitionCommitted(trigger domainwf.Trigger, from, to domainwf.State) {
	r.transitions.WithLabelValues(trigger.String(), from.String(), to.String()).Inc()
}

func (r *Recorder) CommandFailed(operation, kind string) {
	r.failures.WithLabelValues(operation, kind).Inc()
}

func (r *Recorder) GateOpened() {
	r.gatesOpened.Inc()
	r.gatesPending.Inc()
}

func (r *Recorder) GateResolved(decision string) {
	r.gatesResolved.WithLabelValues(decision).Inc()
	r.gatesPending.Dec()
}

// ObserveHTTPRequest records one served request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (r *Recorder) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

var _ workflow.Metrics = (*Recorder)(nil)
