package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tion"

// Collector holds tiond's Prometheus metrics on a private registry.
// It satisfies operator.Metrics.
type Collector struct {
	registry *prometheus.Registry

	connectAttempts *prometheus.CounterVec
	polls           *prometheus.CounterVec
	pollDuration    prometheus.Histogram
	executions      *prometheus.CounterVec
	commands        *prometheus.CounterVec
	connected       prometheus.Gauge
	breakerOpen     *prometheus.GaugeVec
}

// New creates a Collector with Go runtime and process collectors
// registered alongside the tiond metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Device connect attempts by result.",
		}, []string{"device_id", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Device status polls by result.",
		}, []string{"device_id", "result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time taken to poll one device.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_executions_total",
			Help:      "Scenario executions by scenario and result.",
		}, []string{"scenario_id", "result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Device property writes by property and result.",
		}, []string{"property", "result"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_devices",
			Help:      "Devices with a live handle.",
		}),
		breakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_open",
			Help:      "1 while a device's write breaker is open or half-open.",
		}, []string{"device_id"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.connectAttempts,
		c.polls,
		c.pollDuration,
		c.executions,
		c.commands,
		c.connected,
		c.breakerOpen,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ConnectAttempt counts one device connect attempt.
func (c *Collector) ConnectAttempt(deviceID string, ok bool) {
	c.connectAttempts.WithLabelValues(deviceID, result(ok)).Inc()
}

// PollResult counts one device poll and records its duration.
func (c *Collector) PollResult(deviceID string, ok bool, took time.Duration) {
	c.polls.WithLabelValues(deviceID, result(ok)).Inc()
	c.pollDuration.Observe(took.Seconds())
}

// ScenarioExecuted counts one scenario run.
func (c *Collector) ScenarioExecuted(scenarioID int64, ok bool) {
	c.executions.WithLabelValues(strconv.FormatInt(scenarioID, 10), result(ok)).Inc()
}

// CommandResult counts one property write.
func (c *Collector) CommandResult(property string, ok bool) {
	c.commands.WithLabelValues(property, result(ok)).Inc()
}

// ConnectedDevices sets the live handle count.
func (c *Collector) ConnectedDevices(n int) {
	c.connected.Set(float64(n))
}

// BreakerState takes gobreaker state names: closed, half-open, open.
func (c *Collector) BreakerState(deviceID, state string) {
	v := 1.0
	if state == "closed" {
		v = 0
	}
	c.breakerOpen.WithLabelValues(deviceID).Set(v)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
