// Package breakev defines the user-visible break event model: breakpoints
// and catchpoints, and the store that owns them.
//
// Break events are declarative. The store holds what the user asked for;
// binding them to a live debugging engine is the session's job. Identity is
// by pointer: the same *Breakpoint or *Catchpoint instance flows through
// store signals, the session registry, and engine round trips.
package breakev
