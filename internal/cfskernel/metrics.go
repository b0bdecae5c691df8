package cfskernel

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instrumentation for a Machine, grounded on
// the counter/gauge pairs task/backend/executor wires up per operation in
// the teacher pack's influx clone (storage/retention.go, task_executor.go).
type Metrics struct {
	contextSwitches prometheus.Counter
	forks           prometheus.Counter
	exits           prometheus.Counter
	kills           prometheus.Counter
	wakes           prometheus.Counter
	preemptions     prometheus.Counter
	runnable        prometheus.Gauge
	sleeping        prometheus.Gauge
}

// NewMetrics constructs and registers a Metrics set against reg. Passing
// prometheus.NewRegistry() keeps tests isolated from the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		contextSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsched",
			Name:      "context_switches_total",
			Help:      "Number of times a CPU dispatched a task.",
		}),
		forks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsched",
			Name:      "forks_total",
			Help:      "Number of successful Fork calls.",
		}),
		exits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsched",
			Name:      "exits_total",
			Help:      "Number of tasks that have called Exit.",
		}),
		kills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsched",
			Name:      "kills_total",
			Help:      "Number of Kill calls that matched a live task.",
		}),
		wakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsched",
			Name:      "wakes_total",
			Help:      "Number of sleeping tasks transitioned to RUNNABLE by a wake scan.",
		}),
		preemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsched",
			Name:      "preemptions_total",
			Help:      "Number of times Yield/Tick decided to preempt the running task.",
		}),
		runnable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cfsched",
			Name:      "runnable_tasks",
			Help:      "Current number of tasks in the run queue.",
		}),
		sleeping: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cfsched",
			Name:      "sleeping_tasks",
			Help:      "Current number of SLEEPING tasks.",
		}),
	}
	reg.MustRegister(
		m.contextSwitches, m.forks, m.exits, m.kills,
		m.wakes, m.preemptions, m.runnable, m.sleeping,
	)
	return m
}
