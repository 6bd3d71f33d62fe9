// Package httpapi exposes the orchestration engine over HTTP.
//
// The server streams turn progress over SSE, serves read-only session state,
// and accepts human-review actions (approve, save-draft). Prometheus metrics
// are served on /metrics.
package httpapi
