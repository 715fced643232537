// Package main is a demonstration driver for the debugstorm session
// front-end. It runs a scripted engine through a launch, a breakpoint hit,
// a step, and a continue to exit, printing the event stream.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dshills/debugstorm/internal/breakev"
	"github.com/dshills/debugstorm/internal/config"
	"github.com/dshills/debugstorm/internal/engine"
	"github.com/dshills/debugstorm/internal/engine/enginetest"
	"github.com/dshills/debugstorm/internal/session"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var profilePath string
	var showVersion bool
	flag.StringVar(&profilePath, "profile", "", "Path to launch profile (TOML)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("debugstorm %s (%s)\n", version, commit)
		return 0
	}

	profile := config.Default()
	if profilePath != "" {
		p, err := config.Load(profilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		profile = p
	}
	if profile.Command == "" {
		profile.Command = "demo-target"
	}
	opts, err := profile.SessionOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	eng := enginetest.New()
	bp := breakev.NewBreakpoint("main.go", 10)
	scriptEngine(eng, bp)

	cfg := profile.SessionConfig()
	cfg.OutputWriter = func(isStderr bool, text string) {
		if isStderr {
			fmt.Fprint(os.Stderr, text)
			return
		}
		fmt.Print(text)
	}
	cfg.LogWriter = func(_ bool, text string) {
		fmt.Fprint(os.Stderr, "[debugger] "+text)
	}

	sess, err := session.New(eng, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer sess.Dispose()

	if err := sess.BreakpointStore().Add(bp); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	done := make(chan struct{})
	if _, err := sess.SubscribeAll(func(ev engine.TargetEvent) {
		fmt.Printf("event: %s (state %s)\n", ev.Kind, sess.State())
		switch ev.Kind {
		case engine.TargetHitBreakpoint:
			fmt.Printf("hit %s, status %q\n", bp, sess.BreakEventStatus(bp))
			if err := sess.StepLine(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case engine.TargetStopped:
			if err := sess.Continue(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case engine.TargetExited:
			close(done)
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	sess.OnTargetStarted(func() {
		fmt.Println("target started")
	})

	if err := sess.Run(profile.StartInfo(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		fmt.Fprintln(os.Stderr, "Error: demo target did not exit")
		return 1
	}
	fmt.Println("target exited")
	return 0
}

// scriptEngine wires the scripted engine to behave like a tiny target:
// launch stops at the breakpoint, a step stops on the next line, a continue
// exits. Notifications are posted from their own goroutine, as a real
// backend's event pump would.
func scriptEngine(eng *enginetest.Engine, bp *breakev.Breakpoint) {
	thread := engine.NewThreadInfo(1234, 1, "main", "main.go:10")

	eng.RunFunc = func(_ *engine.StartInfo) error {
		go func() {
			eng.PostStarted(thread)
			eng.PostEvent(engine.TargetReady)
			eng.Sink().NotifyTargetOutput(false, "hello from the demo target\n")
			time.Sleep(10 * time.Millisecond)
			ev := engine.NewTargetEvent(engine.TargetHitBreakpoint)
			ev.Thread = thread
			ev.BreakEvent = bp
			eng.Sink().NotifyTargetEvent(ev)
		}()
		return nil
	}
	eng.StepLineFunc = func() error {
		go func() {
			time.Sleep(10 * time.Millisecond)
			ev := engine.NewTargetEvent(engine.TargetStopped)
			ev.Thread = thread
			eng.Sink().NotifyTargetEvent(ev)
		}()
		return nil
	}
	eng.ContinueFunc = func() error {
		go func() {
			time.Sleep(10 * time.Millisecond)
			eng.Sink().NotifyTargetOutput(false, "demo target finished\n")
			eng.PostEvent(engine.TargetExited)
		}()
		return nil
	}
}
