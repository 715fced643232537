package breakev

import "fmt"

// HitCountMode controls when a breakpoint with a hit-count filter actually
// stops the target.
type HitCountMode int

const (
	// HitCountNone disables hit-count filtering.
	HitCountNone HitCountMode = iota
	// HitCountLessThan stops while the hit count is below the target.
	HitCountLessThan
	// HitCountLessThanOrEqual stops while the hit count is at or below the target.
	HitCountLessThanOrEqual
	// HitCountEqual stops only when the hit count equals the target.
	HitCountEqual
	// HitCountGreaterThan stops once the hit count exceeds the target.
	HitCountGreaterThan
	// HitCountGreaterThanOrEqual stops once the hit count reaches the target.
	HitCountGreaterThanOrEqual
	// HitCountMultipleOf stops on every Nth hit.
	HitCountMultipleOf
)

// String returns the hit-count mode name.
func (m HitCountMode) String() string {
	switch m {
	case HitCountNone:
		return "none"
	case HitCountLessThan:
		return "<"
	case HitCountLessThanOrEqual:
		return "<="
	case HitCountEqual:
		return "=="
	case HitCountGreaterThan:
		return ">"
	case HitCountGreaterThanOrEqual:
		return ">="
	case HitCountMultipleOf:
		return "multiple-of"
	default:
		return "unknown"
	}
}

// EventCommon holds the fields shared by every break event kind.
//
// Enabled is user-owned. HitCount and LastTraceValue are mutated by the
// session as the target runs. UserTag is opaque storage for the owner of the
// store (typically a UI pad).
type EventCommon struct {
	Enabled        bool
	HitCount       int
	LastTraceValue string
	UserTag        any
}

// BreakEvent is the union of breakpoints and catchpoints as user-configurable
// entities. Identity is by reference: two break events are the same event
// only if they are the same instance.
type BreakEvent interface {
	// Common returns the mutable fields shared by all break event kinds.
	Common() *EventCommon

	// Location returns the human-readable location of the event, such as
	// "main.go:42" for a breakpoint or the exception name for a catchpoint.
	Location() string
}

// Breakpoint is a break event bound to a source location.
type Breakpoint struct {
	EventCommon

	File   string
	Line   int
	Column int

	// Condition is evaluated in the target when the location is reached;
	// the target only stops when it is empty or evaluates true.
	Condition string

	// HitCountMode and HitCountTarget filter stops by how many times the
	// location has been reached.
	HitCountMode   HitCountMode
	HitCountTarget int

	// TraceExpression, when set, is evaluated on every hit and reported
	// through the session's trace handler instead of unconditionally
	// stopping the target.
	TraceExpression string
}

// NewBreakpoint returns an enabled breakpoint at the given location.
func NewBreakpoint(file string, line int) *Breakpoint {
	return &Breakpoint{
		EventCommon: EventCommon{Enabled: true},
		File:        file,
		Line:        line,
	}
}

// Common returns the shared break event fields.
func (b *Breakpoint) Common() *EventCommon { return &b.EventCommon }

// Location returns "file:line".
func (b *Breakpoint) Location() string {
	return fmt.Sprintf("%s:%d", b.File, b.Line)
}

// String returns a description of the breakpoint.
func (b *Breakpoint) String() string {
	return "breakpoint at " + b.Location()
}

// Catchpoint is a break event that stops the target when an exception of the
// named type is thrown.
type Catchpoint struct {
	EventCommon

	ExceptionName     string
	IncludeSubclasses bool
}

// NewCatchpoint returns an enabled catchpoint for the named exception type.
func NewCatchpoint(exceptionName string) *Catchpoint {
	return &Catchpoint{
		EventCommon:   EventCommon{Enabled: true},
		ExceptionName: exceptionName,
	}
}

// Common returns the shared break event fields.
func (c *Catchpoint) Common() *EventCommon { return &c.EventCommon }

// Location returns the exception type name.
func (c *Catchpoint) Location() string { return c.ExceptionName }

// String returns a description of the catchpoint.
func (c *Catchpoint) String() string {
	return "catchpoint for " + c.ExceptionName
}
