// Package api hosts the operator status server. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/stats for the seen-set sizes and outstanding queue work.
package api
