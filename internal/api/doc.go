// Package api hosts the HTTP server, middleware, and REST handlers that
// trigger analysis work. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/jobs/schedule and /v1/jobs/process to drive the queue.
//   - POST /v1/websites/{id}/... and /v1/competitors/{id}/... for ad hoc
//     analysis triggers.
package api
