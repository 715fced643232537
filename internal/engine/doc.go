// Package engine defines the abstract debugging engine: the interface a
// concrete backend (native, managed runtime, remote protocol) implements, the
// asynchronous target events it raises, and the value objects it returns.
//
// The session front-end drives an Engine through its On* operations and
// receives notifications through the EventSink it binds. Engines must deliver
// notifications from goroutines that are not executing an On* call on behalf
// of the session; the sink takes session-internal locks.
package engine
