// Package metrics exposes Prometheus counters for the intake wizard, the
// event dispatcher and the catalog refresh job.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dwizi/intakebot/internal/heartbeat"
	"github.com/dwizi/intakebot/internal/workflow"
)

const namespace = "intakebot"

// Recorder implements wizard.Observer, dispatch.Observer and refresh.Observer
// on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	flowsStarted   *prometheus.CounterVec
	flowsFinished  *prometheus.CounterVec
	steps          *prometheus.CounterVec
	attachments    *prometheus.CounterVec
	eventsQueued   *prometheus.CounterVec
	eventsRejected *prometheus.CounterVec
	eventDuration  *prometheus.HistogramVec
	refreshes      *prometheus.CounterVec
	lastRefresh    prometheus.Gauge
	catalogSize    *prometheus.GaugeVec
	componentUp    *prometheus.GaugeVec
}

func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		flowsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flows_started_total",
				Help:      "Number of bug report and task creation flows started.",
			},
			[]string{"flow"},
		),
		flowsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flows_finished_total",
				Help:      "Number of flows that ended, by outcome.",
			},
			[]string{"flow", "outcome"},
		),
		steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Step events processed, by step and outcome.",
			},
			[]string{"step", "outcome"},
		),
		attachments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attachments_total",
				Help:      "Attachment downloads and forwards, by result.",
			},
			[]string{"operation", "result"},
		),
		eventsQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_queued_total",
				Help:      "Inbound chat events accepted by the dispatcher.",
			},
			[]string{"shard"},
		),
		eventsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_rejected_total",
				Help:      "Inbound chat events rejected because a shard queue was full.",
			},
			[]string{"shard"},
		),
		eventDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_duration_seconds",
				Help:      "Time spent handling one chat event.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_refresh_total",
				Help:      "Catalog refresh runs, by result.",
			},
			[]string{"result"},
		),
		lastRefresh: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful catalog refresh.",
		}),
		catalogSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_entries",
				Help:      "Entries in the cached Jira catalog, by kind.",
			},
			[]string{"kind"},
		),
		componentUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "component_up",
				Help:      "1 when a runtime component is healthy, 0 otherwise.",
			},
			[]string{"component"},
		),
	}
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) FlowStarted(flow workflow.FlowKind) {
	r.flowsStarted.WithLabelValues(string(flow)).Inc()
}

func (r *Recorder) FlowFinished(flow workflow.FlowKind, outcome string) {
	r.flowsFinished.WithLabelValues(string(flow), outcome).Inc()
}

func (r *Recorder) StepHandled(step workflow.Step, outcome string) {
	r.steps.WithLabelValues(string(step), outcome).Inc()
}

func (r *Recorder) AttachmentHandled(operation string, ok bool) {
	r.attachments.WithLabelValues(operation, result(ok)).Inc()
}

func (r *Recorder) EventQueued(shard int) {
	r.eventsQueued.WithLabelValues(strconv.Itoa(shard)).Inc()
}

func (r *Recorder) EventRejected(shard int) {
	r.eventsRejected.WithLabelValues(strconv.Itoa(shard)).Inc()
}

func (r *Recorder) EventHandled(_ int, duration time.Duration, err error) {
	r.eventDuration.WithLabelValues(result(err == nil)).Observe(duration.Seconds())
}

func (r *Recorder) RefreshFinished(boards, contributors, links int, err error) {
	r.refreshes.WithLabelValues(result(err == nil)).Inc()
	if err != nil {
		return
	}
	r.lastRefresh.SetToCurrentTime()
	r.catalogSize.WithLabelValues("boards").Set(float64(boards))
	r.catalogSize.WithLabelValues("contributors").Set(float64(contributors))
	r.catalogSize.WithLabelValues("links").Set(float64(links))
}

// ObserveComponents mirrors a heartbeat snapshot into component_up.
func (r *Recorder) ObserveComponents(snapshot heartbeat.Snapshot) {
	for _, status := range snapshot.Components {
		value := 0.0
		if status.State == heartbeat.StateHealthy {
			value = 1
		}
		r.componentUp.WithLabelValues(status.Name).Set(value)
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
