// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces the harvester uses to report run milestones. It batches events on a
// background goroutine and fans them out to pluggable sinks such as Prometheus
// collectors or the recent-event buffer served by the ops API.
package progress
