// Package orchestrator implements the publish orchestrator.
//
// The manager drives one run at a time:
//   - Validating items and the run configuration at Start
//   - Publishing items sequentially through the injected Publisher
//   - Waiting between items with a cancellable per-second countdown
//   - Persisting every state transition through the StateStore
//   - Emitting progress events to the ProgressSink
//
// The interval policy computes the wait between two items.
package orchestrator
