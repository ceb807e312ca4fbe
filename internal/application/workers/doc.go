// Package workers implements the background workers around the orchestrator.
//
// The dispatcher fans progress events out to several sinks. Each sink gets
// its own goroutine and bounded queue, so a slow or failing sink never blocks
// the run loop or the other sinks; events are dropped when a queue is full.
//
// The health monitor periodically inspects the current run, exports its
// progress as metrics and flags runs that stopped making progress.
package workers
