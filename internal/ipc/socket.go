package ipc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// socketBinaries are asked for their socket path when no environment variable names it.
var socketBinaries = []string{"sway", "i3"}

// SocketPath locates the window manager's IPC socket from SWAYSOCK, then
// I3SOCK, then by asking the window manager binaries on PATH.
func SocketPath(ctx context.Context) (string, error) {
	for _, key := range []string{"SWAYSOCK", "I3SOCK"} {
		if path := os.Getenv(key); path != "" {
			return path, nil
		}
	}
	var errs []error
	for _, bin := range socketBinaries {
		path, err := askSocketPath(ctx, bin)
		if err == nil {
			return path, nil
		}
		errs = append(errs, err)
	}
	return "", &ConnectionError{
		Op:  "locate socket",
		Err: fmt.Errorf("SWAYSOCK and I3SOCK not set: %w", errors.Join(errs...)),
	}
}

func askSocketPath(ctx context.Context, bin string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, "--get-socketpath")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s --get-socketpath: %v: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	path := strings.TrimSpace(stdout.String())
	if path == "" {
		return "", fmt.Errorf("%s --get-socketpath: empty output", bin)
	}
	return path, nil
}
