// Package prometheus exposes service counters to Prometheus.
//
// [NewCollector] returns a prometheus.Collector that the caller registers on
// its own registry and serves with promhttp. Counter names are prefixed
// rsvp_*_total; the single histogram is rsvp_authenticate_latency_seconds.
package prometheus
