// Package api provides HTTP API handlers and middleware for the server.
//
// This package encapsulates all HTTP-related concerns:
// - REST API endpoints for pool statistics, warm-up and queries
// - Health and Prometheus metrics endpoints
// - WebSocket status streaming
// - Basic auth, CORS and request logging middleware
//
// The package uses gin-gonic for routing.
package api
