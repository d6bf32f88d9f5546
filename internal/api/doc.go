// Package api hosts the HTTP server, middleware, and handlers for querying
// the crawled corpus. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/search?q=<query>&amount=<n> for ranked search results.
package api
