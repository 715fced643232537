// Package config loads launch profiles: declarative descriptions of how to
// start or attach a debug session, stored as TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/dshills/debugstorm/internal/engine"
	"github.com/dshills/debugstorm/internal/session"
)

// ErrUnknownSetting is wrapped around enum values a profile does not accept.
var ErrUnknownSetting = errors.New("unknown setting value")

// EvaluationProfile is the evaluation section of a launch profile.
type EvaluationProfile struct {
	TimeoutMS             int    `toml:"timeout_ms"`
	AllowMethodInvocation bool   `toml:"allow_method_invocation"`
	AllowToStringCalls    bool   `toml:"allow_to_string_calls"`
	MemberVisibility      string `toml:"member_visibility"`
}

// Profile describes how to launch or attach to one debug target.
type Profile struct {
	Command    string            `toml:"command"`
	Args       []string          `toml:"args"`
	WorkingDir string            `toml:"working_dir"`
	Env        map[string]string `toml:"env"`

	// AttachPID, when non-zero, attaches to a running process instead of
	// launching Command.
	AttachPID int64 `toml:"attach_pid"`

	StopOnEntry        bool   `toml:"stop_on_entry"`
	UseOperationThread bool   `toml:"use_operation_thread"`
	Stepping           string `toml:"stepping"`
	PathComparison     string `toml:"path_comparison"`

	Evaluation EvaluationProfile `toml:"evaluation"`
}

// Default returns the profile defaults: operation thread on, line stepping,
// one second evaluation timeout.
func Default() *Profile {
	return &Profile{
		UseOperationThread: true,
		Stepping:           "line",
		PathComparison:     "auto",
		Evaluation: EvaluationProfile{
			TimeoutMS:             1000,
			AllowMethodInvocation: true,
			AllowToStringCalls:    true,
			MemberVisibility:      "all",
		},
	}
}

// Load reads a profile from path. A missing file yields the defaults.
// Unknown keys are rejected.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a profile from TOML, applying defaults for absent fields.
func Parse(data []byte) (*Profile, error) {
	p := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	return p, nil
}

// StartInfo converts the profile to the engine's launch description.
func (p *Profile) StartInfo() *engine.StartInfo {
	return &engine.StartInfo{
		Command:     p.Command,
		Args:        append([]string{}, p.Args...),
		WorkingDir:  p.WorkingDir,
		Env:         p.Env,
		StopOnEntry: p.StopOnEntry,
	}
}

// SessionOptions converts the profile to session options.
func (p *Profile) SessionOptions() (*session.Options, error) {
	opts := session.DefaultOptions()

	switch p.Stepping {
	case "", "line":
		opts.SteppingGranularity = session.GranularityLine
	case "instruction":
		opts.SteppingGranularity = session.GranularityInstruction
	default:
		return nil, fmt.Errorf("%w: stepping %q", ErrUnknownSetting, p.Stepping)
	}

	switch p.PathComparison {
	case "", "auto":
		opts.PathComparison = session.PathComparisonAuto
	case "case-sensitive":
		opts.PathComparison = session.PathComparisonCaseSensitive
	case "case-insensitive":
		opts.PathComparison = session.PathComparisonCaseInsensitive
	default:
		return nil, fmt.Errorf("%w: path_comparison %q", ErrUnknownSetting, p.PathComparison)
	}

	switch p.Evaluation.MemberVisibility {
	case "", "all":
		opts.Evaluation.MemberVisibility = session.VisibilityAll
	case "public":
		opts.Evaluation.MemberVisibility = session.VisibilityPublic
	case "public-and-protected":
		opts.Evaluation.MemberVisibility = session.VisibilityPublicAndProtected
	default:
		return nil, fmt.Errorf("%w: member_visibility %q", ErrUnknownSetting, p.Evaluation.MemberVisibility)
	}

	opts.StopOnAttach = p.StopOnEntry
	opts.Evaluation.Timeout = time.Duration(p.Evaluation.TimeoutMS) * time.Millisecond
	opts.Evaluation.AllowMethodInvocation = p.Evaluation.AllowMethodInvocation
	opts.Evaluation.AllowToStringCalls = p.Evaluation.AllowToStringCalls

	return opts, nil
}

// SessionConfig converts the profile to the session config fields it covers.
func (p *Profile) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.UseOperationThread = p.UseOperationThread
	return cfg
}
