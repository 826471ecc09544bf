// Package observability provides structured logging and metrics for the
// book feed server.
//
// This package implements:
//   - Structured logging with contextual fields (zap-based)
//   - Prometheus-compatible metrics collection
//   - Request ID propagation into log fields
package observability
