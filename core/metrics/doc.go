// Package metrics defines the sinks that observe decomposition runs.
// Sinks like PromSink and InfluxSink live in infra/metrics and register
// themselves by name; NewMetricsSink builds one from configuration and
// returns a MultiSink automatically when several sinks are configured.
package metrics
