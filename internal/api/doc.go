// Package api hosts the ops HTTP server for the harvester. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress/recent for the latest progress events.
//   - GET /v1/progress/stream for a live SSE feed of progress events.
package api
