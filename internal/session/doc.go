// Package session implements the debugger session front-end: the
// coordination layer between a user interface and a concrete debugging
// engine.
//
// A Session mediates commands (run, attach, continue, step, stop), delivers
// asynchronous target events to subscribers, and keeps an externally owned
// break event store consistent with the engine across failures, source
// reloads, and code relocation.
//
// Three exclusive locks partition the session's mutable state: the session
// lock (state machine flags, options, active thread, process cache, and
// serialization of engine calls), the breakpoints lock (the break event info
// map, so status lookups never block on a slow engine call), and the output
// lock (the output and log writer slots). Engine callbacks take only the
// locks they need and never re-enter the dispatcher.
package session
