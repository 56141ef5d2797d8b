package common

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogfUsesPrefix(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stderr)

	Logf("discarded %d frames", 3)
	line := buf.String()
	if !strings.HasPrefix(line, "[cadugate] ") {
		t.Fatalf("log line %q missing prefix", line)
	}
	if !strings.Contains(line, "discarded 3 frames") {
		t.Fatalf("log line %q missing message", line)
	}
}

func TestSetupLoggingWritesRotatedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	closer, err := SetupLogging(LogOptions{Directory: dir, FileName: "test.log", MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("SetupLogging: %v", err)
	}
	Logf("hello rotator")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	SetLogOutput(os.Stderr)

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello rotator") {
		t.Fatalf("log file = %q, want message", data)
	}
}

func TestSetupLoggingWithoutDirectory(t *testing.T) {
	closer, err := SetupLogging(LogOptions{})
	if err != nil {
		t.Fatalf("SetupLogging: %v", err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
