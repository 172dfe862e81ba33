// Package telemetry fans registry events and position samples out to
// the configured external consumers.
//
// Three bridges are provided: Publisher forwards connection status and
// positions to MQTT, Sink writes the same stream to a time-series
// backend (InfluxDB or VictoriaMetrics), and BindCommands routes
// inbound MQTT goto/sync messages into the registry. All bridges
// decouple from the communication loop with a bounded queue that drops
// under backpressure.
package telemetry
