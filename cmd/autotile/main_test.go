package main

import (
	"bytes"
	"errors"
	"flag"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hyprpal/autotile/internal/ipc"
	"github.com/hyprpal/autotile/internal/util"
)

func TestParseFlagsWorkspaces(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want []string
	}{
		{name: "none", argv: nil, want: nil},
		{name: "space separated like nargs", argv: []string{"-w", "8", "9"}, want: []string{"8", "9"}},
		{name: "comma separated", argv: []string{"--workspaces", "1,2"}, want: []string{"1", "2"}},
		{name: "after other flags", argv: []string{"--debug", "-w", "3"}, want: []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.argv)
			if err != nil {
				t.Fatalf("parseFlags: %v", err)
			}
			if diff := cmp.Diff(tt.want, opts.workspaces); diff != "" {
				t.Fatalf("workspaces mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFlagsRejectsStrayArguments(t *testing.T) {
	if _, err := parseFlags([]string{"8"}); err == nil {
		t.Fatalf("expected error for positional args without -w")
	}
}

func TestParseFlagsHelp(t *testing.T) {
	if _, err := parseFlags([]string{"-h"}); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func TestRunPrintsVersion(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"--version"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out.String(), "autotile dev, go") {
		t.Fatalf("unexpected version banner %q", out.String())
	}
}

func TestRunFailsWithoutSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "wm")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	err = run([]string{
		"--socket", filepath.Join(dir, "missing.sock"),
		"--config", filepath.Join(dir, "missing.yaml"),
	}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected explicit missing config to fail, got %v", err)
	}

	err = run([]string{"--socket", filepath.Join(dir, "missing.sock")}, &bytes.Buffer{})
	var cerr *ipc.ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestRunExitsCleanlyOnShutdownEvent(t *testing.T) {
	dir, err := os.MkdirTemp("", "wm")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "ipc.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := ipc.ReadFrame(conn); err != nil {
			return
		}
		ipc.WriteFrame(conn, ipc.MessageGetVersion, []byte(`{"major":1,"minor":9,"patch":0,"human_readable":"1.9","variant":"sway"}`))
		if _, err := ipc.ReadFrame(conn); err != nil {
			return
		}
		ipc.WriteFrame(conn, ipc.MessageSubscribe, []byte(`{"success":true}`))
		ipc.WriteFrame(conn, ipc.MessageType(ipc.EventShutdown), []byte(`{"change":"exit"}`))
	}()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("workspaces: [1]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := run([]string{"--socket", path, "--config", cfgPath, "--log-level", "off"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestDescribeVersion(t *testing.T) {
	if got := describeVersion(ipc.Version{Major: 4, Minor: 23, HumanReadable: "4.23"}); got != "i3 4.23" {
		t.Fatalf("unexpected i3 version %q", got)
	}
	if got := describeVersion(ipc.Version{Major: 1, Minor: 9, Variant: "sway"}); got != "sway 1.9.0" {
		t.Fatalf("unexpected sway version %q", got)
	}
}

func TestLogLevelFor(t *testing.T) {
	if got := logLevelFor(options{}, false); got != util.LevelOff {
		t.Fatalf("expected silent default, got %v", got)
	}
	if got := logLevelFor(options{}, true); got != util.LevelDebug {
		t.Fatalf("expected debug, got %v", got)
	}
	if got := logLevelFor(options{logLevel: "warn"}, true); got != util.LevelWarn {
		t.Fatalf("expected explicit level to win, got %v", got)
	}
}
