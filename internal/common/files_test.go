package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSha256OfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc.bin")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	sum, size, err := Sha256OfFile(path)
	if err != nil {
		t.Fatalf("Sha256OfFile: %v", err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if sum != want || size != 3 {
		t.Fatalf("got %s (%d bytes), want %s (3 bytes)", sum, size, want)
	}

	h := NewHasher()
	h.Write([]byte("a"))
	h.Write([]byte("bc"))
	if h.Sum() != want || h.Len() != 3 {
		t.Fatalf("streaming hasher = %s (%d)", h.Sum(), h.Len())
	}

	if _, _, err := Sha256OfFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
