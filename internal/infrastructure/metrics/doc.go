// Package metrics exposes tiond's Prometheus metrics: connect attempts,
// poll outcomes and latency, scenario runs, command writes, live handle
// count and breaker state.
package metrics
