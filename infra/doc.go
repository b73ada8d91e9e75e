// Package infra groups the adapters between the solver core and the outside
// world: zerolog output, the Prometheus and InfluxDB sinks, the MQTT
// schedule publisher and Sentry error reporting. Adapters implement the
// interfaces of the core packages and never the other way round.
package infra
