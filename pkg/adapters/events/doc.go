// Package events provides event bus implementations and the sink adapter that
// lets the orchestrator publish progress events to a bus topic.
//
// Implementations:
//   - redis: Redis Streams
//   - memory: In-memory for testing and single-process deployments
package events
