package cadu

import (
	"io"

	"example.com/cadugate/internal/common"
)

type WriterOptions struct {
	// Randomized output has the pseudo-noise sequence applied to each CVCDU.
	Randomized bool
	// Encoder overrides DefaultEncoder.
	Encoder ParityEncoder
}

// Writer serializes frames onto a byte stream.
type Writer struct {
	w          io.Writer
	randomized bool
	enc        ParityEncoder
	buf        [FrameLength]byte
	frames     int64
	metrics    *common.Metrics
}

func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	enc := opts.Encoder
	if enc == nil {
		enc = DefaultEncoder
	}
	return &Writer{w: w, randomized: opts.Randomized, enc: enc}
}

// SetMetrics attaches a metrics recorder to the writer.
func (w *Writer) SetMetrics(m *common.Metrics) {
	w.metrics = m
}

// WriteFrame recomputes a pending checksum on f and writes the CADU. In
// randomized mode the transform is applied to a copy; f stays clean.
func (w *Writer) WriteFrame(f *Frame) error {
	if f.dirty {
		f.RecomputeChecksumWith(w.enc)
	}
	copy(w.buf[:SyncMarkerLength], syncMarkerBytes[:])
	copy(w.buf[SyncMarkerLength:], f.cvcdu[:])
	if w.randomized {
		Randomize(w.buf[SyncMarkerLength:])
	}
	if _, err := w.w.Write(w.buf[:]); err != nil {
		return err
	}
	w.frames++
	// Bytes are counted on the input side.
	if w.metrics != nil {
		w.metrics.AddFrame(0)
	}
	return nil
}

// Frames is the number of frames written.
func (w *Writer) Frames() int64 {
	return w.frames
}
