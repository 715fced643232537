// Package dispatch serializes session operations.
//
// A dispatcher executes actions one at a time under a caller-supplied lock.
// With the operation thread enabled, actions are queued to a single worker
// goroutine and Dispatch returns immediately; otherwise the caller executes
// inline. Either way, actions submitted from one goroutine run in that
// goroutine's program order, and the lock is held for the entirety of each
// action.
//
// When an action returns an error or panics, the dispatcher releases the
// lock, reports to the configured exception handler, and then invokes the
// action's OnFailure callback. Sessions use OnFailure to synthesize a forcing
// stop or exit event so observers always see a coherent state transition.
package dispatch
