package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/debugstorm/internal/session"
)

func TestParse(t *testing.T) {
	data := []byte(`
command = "./target"
args = ["-v", "--port", "8080"]
working_dir = "/tmp"
stop_on_entry = true
stepping = "instruction"
path_comparison = "case-insensitive"

[env]
DEBUG = "1"

[evaluation]
timeout_ms = 250
allow_method_invocation = false
member_visibility = "public"
`)

	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if p.Command != "./target" {
		t.Errorf("Command = %q", p.Command)
	}
	if len(p.Args) != 3 || p.Args[2] != "8080" {
		t.Errorf("Args = %v", p.Args)
	}
	if p.Env["DEBUG"] != "1" {
		t.Errorf("Env = %v", p.Env)
	}

	opts, err := p.SessionOptions()
	if err != nil {
		t.Fatalf("SessionOptions() failed: %v", err)
	}
	if opts.SteppingGranularity != session.GranularityInstruction {
		t.Errorf("SteppingGranularity = %v", opts.SteppingGranularity)
	}
	if opts.PathComparison != session.PathComparisonCaseInsensitive {
		t.Errorf("PathComparison = %v", opts.PathComparison)
	}
	if opts.Evaluation.Timeout != 250*time.Millisecond {
		t.Errorf("Evaluation.Timeout = %v", opts.Evaluation.Timeout)
	}
	if opts.Evaluation.AllowMethodInvocation {
		t.Error("AllowMethodInvocation should be false")
	}
	if opts.Evaluation.MemberVisibility != session.VisibilityPublic {
		t.Errorf("MemberVisibility = %v", opts.Evaluation.MemberVisibility)
	}

	info := p.StartInfo()
	if info.Command != "./target" || !info.StopOnEntry {
		t.Errorf("StartInfo() = %+v", info)
	}
}

func TestParse_UnknownKey(t *testing.T) {
	if _, err := Parse([]byte("commandd = \"typo\"\n")); err == nil {
		t.Error("unknown keys should be rejected")
	}
}

func TestParse_UnknownEnumValue(t *testing.T) {
	p, err := Parse([]byte("stepping = \"sideways\"\n"))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if _, err := p.SessionOptions(); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("expected ErrUnknownSetting, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !p.UseOperationThread {
		t.Error("defaults should enable the operation thread")
	}
	if p.Stepping != "line" {
		t.Errorf("default Stepping = %q", p.Stepping)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte("command = \"demo\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if p.Command != "demo" {
		t.Errorf("Command = %q", p.Command)
	}
	// Absent fields keep their defaults.
	if p.Evaluation.TimeoutMS != 1000 {
		t.Errorf("TimeoutMS = %d, want default 1000", p.Evaluation.TimeoutMS)
	}
}

func TestSessionConfig(t *testing.T) {
	p := Default()
	p.UseOperationThread = false
	if cfg := p.SessionConfig(); cfg.UseOperationThread {
		t.Error("SessionConfig should carry UseOperationThread")
	}
}
