// Package domain holds the types shared by the orchestrator, its adapters and
// the API layer: content items, run configuration, job state snapshots and
// progress events.
package domain
