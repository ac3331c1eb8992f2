package config

import (
	"strings"
	"testing"
)

func TestDiffSerialized(t *testing.T) {
	oldData := []byte("debug: false\nworkspaces: [1, 2]\n")
	newData := []byte("debug: false\nworkspaces: [1, 3]\n")

	diff := DiffSerialized(oldData, newData)
	if diff == "" {
		t.Fatalf("expected diff, got empty string")
	}
	if !strings.Contains(diff, "[1, 2]") {
		t.Fatalf("expected diff to contain original line, got %s", diff)
	}
	if !strings.Contains(diff, "[1, 3]") {
		t.Fatalf("expected diff to contain updated line, got %s", diff)
	}
}

func TestDiffSerializedIgnoresLineEndings(t *testing.T) {
	if diff := DiffSerialized([]byte("debug: true\r\n"), []byte("debug: true\n")); diff != "" {
		t.Fatalf("expected no diff, got %s", diff)
	}
}
