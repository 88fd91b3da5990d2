// Package metric provides a Prometheus-backed registry for component
// metrics. Components accept a nil registry and skip metric recording
// entirely, so observability is opt-in per process.
package metric
