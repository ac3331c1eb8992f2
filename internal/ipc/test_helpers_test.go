package ipc

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s: %v", key, err)
	}
	t.Cleanup(func() {
		if !had {
			os.Unsetenv(key)
			return
		}
		os.Setenv(key, original)
	})
}

// socketDir returns a short directory; unix socket paths are limited to ~100 bytes.
func socketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "wm")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// fakeWM accepts a single client and hands its connection to serve.
func fakeWM(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()
	path := filepath.Join(socketDir(t), "ipc.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()
	t.Cleanup(func() {
		listener.Close()
		<-done
	})
	return path
}

func mustWrite(t *testing.T, conn net.Conn, typ MessageType, payload string) {
	t.Helper()
	if err := WriteFrame(conn, typ, []byte(payload)); err != nil {
		t.Errorf("fake wm write: %v", err)
	}
}

func mustRead(t *testing.T, conn net.Conn) Frame {
	t.Helper()
	f, err := ReadFrame(conn)
	if err != nil {
		t.Errorf("fake wm read: %v", err)
	}
	return f
}
