// Package prometheus exposes the task runtime's counters as Prometheus
// collectors.
package prometheus

import (
	"errors"

	prom "github.com/prometheus/client_golang/prometheus"

	"riptide/engine"
)

// MetricsExporter adapts a processor's task counters to Prometheus. It
// implements prom.Collector; metrics are read from a counter snapshot
// at scrape time.
type MetricsExporter struct {
	processor *engine.TaskProcessor

	tasksCreated    *prom.Desc
	tasksCompleted  *prom.Desc
	tasksCancelled  *prom.Desc
	cancelRequests  *prom.Desc
	tasksOverload   *prom.Desc
	tasksAlive      *prom.Desc
	contextSwitches *prom.Desc
	execSeconds     *prom.Desc
	runQueueDepth   *prom.Desc
}

// NewMetricsExporter creates and registers a collector for the
// processor's task counters.
func NewMetricsExporter(namespace string, reg prom.Registerer, p *engine.TaskProcessor) (*MetricsExporter, error) {
	if p == nil {
		return nil, errors.New("prometheus: nil task processor")
	}
	if namespace == "" {
		namespace = "riptide"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	labels := prom.Labels{"processor": p.Name()}
	desc := func(name, help string) *prom.Desc {
		return prom.NewDesc(prom.BuildFQName(namespace, "", name), help, nil, labels)
	}

	m := &MetricsExporter{
		processor:       p,
		tasksCreated:    desc("tasks_created_total", "Total number of task contexts created."),
		tasksCompleted:  desc("tasks_completed_total", "Total number of tasks finished in the completed state."),
		tasksCancelled:  desc("tasks_cancelled_total", "Total number of tasks finished in the cancelled state."),
		cancelRequests:  desc("task_cancel_requests_total", "Total number of cancellation requests delivered."),
		tasksOverload:   desc("tasks_overload_total", "Total number of tasks rejected or cancelled by overload control."),
		tasksAlive:      desc("tasks_alive", "Number of live task contexts."),
		contextSwitches: desc("context_switches_total", "Total number of task suspension/resume pairs."),
		execSeconds:     desc("task_execution_seconds_total", "Accumulated task execution time in seconds."),
		runQueueDepth:   desc("run_queue_depth", "Current run-queue backlog."),
	}
	if err := reg.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prom.Collector.
func (m *MetricsExporter) Describe(ch chan<- *prom.Desc) {
	ch <- m.tasksCreated
	ch <- m.tasksCompleted
	ch <- m.tasksCancelled
	ch <- m.cancelRequests
	ch <- m.tasksOverload
	ch <- m.tasksAlive
	ch <- m.contextSwitches
	ch <- m.execSeconds
	ch <- m.runQueueDepth
}

// Collect implements prom.Collector.
func (m *MetricsExporter) Collect(ch chan<- prom.Metric) {
	snap := m.processor.Counter().Snapshot()

	counter := func(d *prom.Desc, v float64) {
		ch <- prom.MustNewConstMetric(d, prom.CounterValue, v)
	}
	gauge := func(d *prom.Desc, v float64) {
		ch <- prom.MustNewConstMetric(d, prom.GaugeValue, v)
	}

	counter(m.tasksCreated, float64(snap.Created))
	counter(m.tasksCompleted, float64(snap.Completed))
	counter(m.tasksCancelled, float64(snap.Cancelled))
	counter(m.cancelRequests, float64(snap.CancelRequests))
	counter(m.tasksOverload, float64(snap.Overloads))
	gauge(m.tasksAlive, float64(snap.Alive))
	counter(m.contextSwitches, float64(snap.ContextSwitches))
	counter(m.execSeconds, snap.ExecTotal.Seconds())
	gauge(m.runQueueDepth, float64(m.processor.RunQueueDepth()))
}
