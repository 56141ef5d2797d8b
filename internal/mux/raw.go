package mux

import (
	"example.com/cadugate/internal/cadu"
	"example.com/cadugate/internal/common"
)

// RawPacker chunks an arbitrary byte stream into frame data zones. Every
// frame carries the configured first header pointer; the last frame is zero
// padded on Close.
type RawPacker struct {
	sink    FrameSink
	stamp   *frameStamper
	metrics *common.Metrics
	frame   *cadu.Frame
	offset  int
	frames  int64
	closed  bool
}

func NewRawPacker(sink FrameSink, opts Options) (*RawPacker, error) {
	stamp, err := newFrameStamper(opts.Header)
	if err != nil {
		return nil, err
	}
	return &RawPacker{sink: sink, stamp: stamp, metrics: opts.Metrics}, nil
}

// Write implements io.Writer.
func (rp *RawPacker) Write(p []byte) (int, error) {
	if rp.closed {
		return 0, ErrClosed
	}
	written := 0
	for len(p) > 0 {
		if rp.frame == nil {
			f, err := rp.stamp.frame(rp.stamp.hdr.FirstHeaderPointer)
			if err != nil {
				return written, err
			}
			rp.frame = f
			rp.offset = 0
		}
		n, err := rp.frame.WriteDataAt(rp.offset, p)
		if err != nil {
			return written, err
		}
		rp.offset += n
		written += n
		p = p[n:]
		if rp.offset == cadu.DataZoneLength {
			if err := rp.flush(); err != nil {
				return written, err
			}
		}
	}
	if rp.metrics != nil {
		rp.metrics.AddBytes(int64(written))
	}
	return written, nil
}

func (rp *RawPacker) flush() error {
	if err := rp.sink.WriteFrame(rp.frame); err != nil {
		return err
	}
	rp.frames++
	rp.stamp.advance()
	rp.frame = nil
	rp.offset = 0
	return nil
}

// Close emits the partially filled frame, if any.
func (rp *RawPacker) Close() error {
	if rp.closed {
		return nil
	}
	rp.closed = true
	if rp.frame == nil {
		return nil
	}
	return rp.flush()
}

// Frames is the number of frames emitted.
func (rp *RawPacker) Frames() int64 {
	return rp.frames
}
