// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Starting and stopping a publishing run
//   - Job state queries
//   - Sink worker status
//   - Health checks
//   - Prometheus metrics
package http
