// Package grpc exposes the standard grpc.health.v1 service. The serving
// status follows the orchestrator health monitor.
package grpc
