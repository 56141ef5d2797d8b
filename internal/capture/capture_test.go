package capture

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestRoundTripByExtension(t *testing.T) {
	payload := bytes.Repeat([]byte("\x1a\xcf\xfc\x1dframe"), 4096)
	for _, name := range []string{"plain.cadu", "packed.cadu.gz", "packed.cadu.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			w, err := Create(path)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if _, err := w.Write(payload); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			r, err := Open(path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if err := r.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round trip differs: %d bytes, want %d", len(got), len(payload))
			}
			if CompressionFor(path) == None && r.Size != int64(len(payload)) {
				t.Fatalf("Size = %d, want %d", r.Size, len(payload))
			}
			if CompressionFor(path) != None {
				info, _ := os.Stat(path)
				if info.Size() >= int64(len(payload)) {
					t.Fatalf("%s output not compressed", CompressionFor(path))
				}
			}
		})
	}
}

func TestCompressionFor(t *testing.T) {
	tests := map[string]Compression{
		"a.cadu":       None,
		"a.cadu.GZ":    Gzip,
		"a.zst":        Zstd,
		"a.ccsds.zstd": Zstd,
		"-":            None,
	}
	for path, want := range tests {
		if got := CompressionFor(path); got != want {
			t.Fatalf("CompressionFor(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.cadu")); err == nil {
		t.Fatalf("Open succeeded on missing file")
	}
}
