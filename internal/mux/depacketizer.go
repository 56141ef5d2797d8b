package mux

import (
	"io"

	"example.com/cadugate/internal/cadu"
	"example.com/cadugate/internal/common"
)

// DiscardReport summarizes what was dropped before the first usable packet
// header. Aligned is false when the stream ended without one.
type DiscardReport struct {
	Frames  int64
	Bytes   int64
	Aligned bool
}

type DepacketizerOptions struct {
	// Raw emits every data zone verbatim and never discards.
	Raw bool
	// Report receives the discard counts exactly once. The default logs them.
	Report  func(DiscardReport)
	Logf    func(format string, args ...interface{})
	Metrics *common.Metrics
}

// Depacketizer writes the data zones of a frame stream to w, dropping
// everything before the first packet header.
type Depacketizer struct {
	w       io.Writer
	raw     bool
	report  func(DiscardReport)
	logf    func(string, ...interface{})
	metrics *common.Metrics

	aligned   bool
	reported  bool
	discarded DiscardReport
}

func NewDepacketizer(w io.Writer, opts DepacketizerOptions) *Depacketizer {
	logf := opts.Logf
	if logf == nil {
		logf = common.Logf
	}
	d := &Depacketizer{
		w:       w,
		raw:     opts.Raw,
		report:  opts.Report,
		logf:    logf,
		metrics: opts.Metrics,
		aligned: opts.Raw,
	}
	if d.report == nil {
		d.report = d.logReport
	}
	return d
}

// WriteFrame consumes the next frame in arrival order.
func (d *Depacketizer) WriteFrame(f *cadu.Frame) error {
	if d.aligned {
		_, err := d.w.Write(f.Data())
		return err
	}
	pointer := f.FirstHeaderPointer()
	if !f.HasPacketStart() {
		d.discarded.Frames++
		if pointer != cadu.FirstHeaderPointerNone {
			d.logf("frame %d: first header pointer %d outside data zone, discarding frame", f.FrameCount(), pointer)
		}
		return nil
	}
	tail, err := f.DataFrom(int(pointer))
	if err != nil {
		return err
	}
	d.discarded.Bytes = int64(pointer)
	d.discarded.Aligned = true
	d.aligned = true
	d.flushReport()
	_, err = d.w.Write(tail)
	return err
}

// Close reports the discard counts if no frame established alignment.
func (d *Depacketizer) Close() error {
	d.flushReport()
	return nil
}

func (d *Depacketizer) flushReport() {
	if d.reported || d.raw {
		return
	}
	d.reported = true
	if d.metrics != nil {
		d.metrics.AddDiscarded(d.discarded.Frames, d.discarded.Bytes)
	}
	d.report(d.discarded)
}

func (d *Depacketizer) logReport(r DiscardReport) {
	if !r.Aligned {
		d.logf("no frame contained a first header; all %d frames were discarded", r.Frames)
		return
	}
	d.logf("first %d frames contained no first header and were discarded", r.Frames)
	d.logf("first %d bytes of the first frame with a header were discarded", r.Bytes)
}

// Aligned reports whether a packet header has been seen.
func (d *Depacketizer) Aligned() bool {
	return d.aligned
}

// Discarded returns the counts accumulated so far.
func (d *Depacketizer) Discarded() DiscardReport {
	return d.discarded
}
