// Package ports declares the contracts the orchestrator consumes. Adapters
// under pkg/adapters implement them.
package ports
