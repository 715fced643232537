package breakev

import "testing"

func TestBreakpoint_Location(t *testing.T) {
	bp := NewBreakpoint("src/main.go", 42)
	if got := bp.Location(); got != "src/main.go:42" {
		t.Errorf("Location() = %q, want %q", got, "src/main.go:42")
	}
	if !bp.Enabled {
		t.Error("new breakpoints should be enabled")
	}
}

func TestCatchpoint_Location(t *testing.T) {
	cp := NewCatchpoint("runtime.Error")
	if got := cp.Location(); got != "runtime.Error" {
		t.Errorf("Location() = %q, want %q", got, "runtime.Error")
	}
	if !cp.Enabled {
		t.Error("new catchpoints should be enabled")
	}
}

func TestBreakEvent_Common(t *testing.T) {
	var be BreakEvent = NewBreakpoint("main.go", 1)
	be.Common().HitCount = 3
	bp := be.(*Breakpoint)
	if bp.HitCount != 3 {
		t.Errorf("HitCount through Common() = %d, want 3", bp.HitCount)
	}
}

func TestHitCountMode_String(t *testing.T) {
	tests := []struct {
		mode HitCountMode
		want string
	}{
		{HitCountNone, "none"},
		{HitCountEqual, "=="},
		{HitCountMultipleOf, "multiple-of"},
		{HitCountMode(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}
