// Package sinks implements concrete progress consumers: Prometheus run
// collectors, an in-memory recent-event buffer for the ops API, and structured
// logging. Each sink satisfies the progress.Sink interface and is safe for
// repeated Consume/Close cycles.
package sinks
