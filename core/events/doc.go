// Package events defines the solve related events emitted on the event bus.
//
// Available event types:
//   - IterationEvent: one step of the decomposition (master, dispatch, cut)
//   - RunEvent: summary of a finished solve run
package events
