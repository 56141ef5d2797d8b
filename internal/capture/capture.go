// Package capture opens and creates capture files. "-" selects stdin or
// stdout; a .gz or .zst suffix adds transparent compression.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const Stdio = "-"

// Compression identifies the container format of a capture file.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

// CompressionFor picks the format from the file extension.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// Reader is an opened capture. Size is the on-disk size of an uncompressed
// regular file and -1 otherwise.
type Reader struct {
	io.Reader
	Size    int64
	closers []func() error
}

func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open opens path for reading.
func Open(path string) (*Reader, error) {
	if path == "" || path == Stdio {
		return &Reader{Reader: bufio.NewReaderSize(os.Stdin, 64*1024), Size: -1}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{Size: -1, closers: []func() error{f.Close}}
	comp := CompressionFor(path)
	switch comp {
	case Gzip:
		zr, err := gzip.NewReader(bufio.NewReaderSize(f, 64*1024))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		r.Reader = zr
		r.closers = append(r.closers, zr.Close)
	case Zstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd %s: %w", path, err)
		}
		r.Reader = zr
		r.closers = append(r.closers, func() error { zr.Close(); return nil })
	default:
		if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
			r.Size = info.Size()
		}
		r.Reader = bufio.NewReaderSize(f, 64*1024)
	}
	return r, nil
}

// Writer is a created capture. Close flushes compression and buffers before
// closing the file.
type Writer struct {
	io.Writer
	closers []func() error
}

func (w *Writer) Close() error {
	var errs []error
	for _, c := range w.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Create creates path for writing, truncating an existing file.
func Create(path string) (*Writer, error) {
	var dst io.Writer
	var closeFile func() error
	if path == "" || path == Stdio {
		dst = os.Stdout
		closeFile = func() error { return nil }
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		dst = f
		closeFile = f.Close
	}
	buf := bufio.NewWriterSize(dst, 64*1024)
	w := &Writer{}
	switch CompressionFor(path) {
	case Gzip:
		zw := gzip.NewWriter(buf)
		w.Writer = zw
		w.closers = append(w.closers, zw.Close)
	case Zstd:
		zw, err := zstd.NewWriter(buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			closeFile()
			return nil, fmt.Errorf("create zstd %s: %w", path, err)
		}
		w.Writer = zw
		w.closers = append(w.closers, zw.Close)
	default:
		w.Writer = buf
	}
	w.closers = append(w.closers, buf.Flush, closeFile)
	return w, nil
}
