// Package observability provides structured logging and Prometheus metrics
// for the camp API.
//
// This package implements:
//   - zap logger construction from configuration
//   - HTTP request metrics keyed by chi route pattern
//   - authentication decision counters
package observability
