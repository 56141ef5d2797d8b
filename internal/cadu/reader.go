package cadu

import (
	"errors"
	"fmt"
	"io"

	"example.com/cadugate/internal/common"
)

// ErrTruncatedFrame reports a sync marker followed by fewer than 1020 bytes.
// It matches io.ErrUnexpectedEOF under errors.Is.
var ErrTruncatedFrame = fmt.Errorf("cadu: truncated frame: %w", io.ErrUnexpectedEOF)

type ReaderOptions struct {
	// Randomized input is derandomized before parsing.
	Randomized bool
}

// Reader yields clean frames from a CADU byte stream.
type Reader struct {
	sync       *Synchronizer
	randomized bool
	buf        [CVCDULength]byte
	offset     int64
	frames     int64
	metrics    *common.Metrics
}

func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		sync:       NewSynchronizer(r),
		randomized: opts.Randomized,
		offset:     -1,
	}
}

// SetMetrics attaches a metrics recorder to the reader.
func (r *Reader) SetMetrics(m *common.Metrics) {
	r.metrics = m
}

// Next returns the next frame. It returns io.EOF once no further marker
// exists. A marker with an incomplete body yields ErrTruncatedFrame; calling
// Next again resumes the scan on the remaining stream.
func (r *Reader) Next() (*Frame, error) {
	skippedBefore := r.sync.Skipped()
	off, err := r.sync.Next()
	if r.metrics != nil {
		if skipped := r.sync.Skipped() - skippedBefore; skipped > 0 {
			r.metrics.AddSkipped(skipped)
			if err == nil {
				r.metrics.IncResync()
			}
		}
	}
	if err != nil {
		return nil, err
	}
	r.offset = off
	n, err := io.ReadFull(r.sync, r.buf[:])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %d of %d bytes after marker at offset %d", ErrTruncatedFrame, n, CVCDULength, off)
		}
		return nil, err
	}
	if r.randomized {
		Randomize(r.buf[:])
	}
	f := &Frame{cvcdu: r.buf}
	r.frames++
	if r.metrics != nil {
		r.metrics.AddFrame(FrameLength)
	}
	return f, nil
}

// Offset returns the stream offset of the most recent marker, or -1.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Frames is the number of complete frames returned.
func (r *Reader) Frames() int64 {
	return r.frames
}

// Skipped is the number of bytes discarded while hunting for markers.
func (r *Reader) Skipped() int64 {
	return r.sync.Skipped()
}
