package mux

import (
	"fmt"

	"example.com/cadugate/internal/cadu"
	"example.com/cadugate/internal/ccsds"
	"example.com/cadugate/internal/common"
)

// Packetizer packs a CCSDS packet stream into frames. In ccsds mode packets
// run continuously across frame boundaries and the first header pointer
// tracks where the next packet starts. In padded mode every frame holds one
// packet at a fixed offset followed by an exact-fit fill packet.
type Packetizer struct {
	sink    FrameSink
	padded  bool
	stamp   *frameStamper
	logf    func(string, ...interface{})
	metrics *common.Metrics

	frame  *cadu.Frame
	offset int
	start  int

	frames  int64
	skipped int64
	closed  bool
}

// NewPacketizer returns a continuous ccsds mode packetizer. The configured
// first header pointer is both the first frame's pointer and the offset the
// first packet is written at.
func NewPacketizer(sink FrameSink, opts Options) (*Packetizer, error) {
	return newPacketizer(sink, opts, false)
}

// NewPaddedPacketizer returns a one-packet-per-frame packetizer. The
// configured first header pointer is the offset of each frame's packet; the
// bytes before it are zero.
func NewPaddedPacketizer(sink FrameSink, opts Options) (*Packetizer, error) {
	return newPacketizer(sink, opts, true)
}

func newPacketizer(sink FrameSink, opts Options, padded bool) (*Packetizer, error) {
	start := int(opts.Header.FirstHeaderPointer)
	limit := cadu.DataZoneLength - 1
	if padded {
		limit = cadu.DataZoneLength - ccsds.MinPacketLength
	}
	if start > limit {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrBadOffset, start, limit)
	}
	stamp, err := newFrameStamper(opts.Header)
	if err != nil {
		return nil, err
	}
	pk := &Packetizer{
		sink:    sink,
		padded:  padded,
		stamp:   stamp,
		logf:    opts.logf(),
		metrics: opts.Metrics,
		start:   start,
	}
	if !padded {
		pk.frame, err = stamp.frame(uint16(start))
		if err != nil {
			return nil, err
		}
		pk.offset = start
	}
	return pk, nil
}

// WritePacket serializes p and appends it to the frame stream.
func (pk *Packetizer) WritePacket(p *ccsds.Packet) error {
	raw, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	return pk.WritePacketBytes(raw)
}

// WritePacketBytes appends one serialized packet.
func (pk *Packetizer) WritePacketBytes(raw []byte) error {
	if pk.closed {
		return ErrClosed
	}
	if pk.metrics != nil {
		pk.metrics.AddPacket(int64(len(raw)))
	}
	if pk.padded {
		return pk.writePadded(raw)
	}
	return pk.writeContinuous(raw)
}

func (pk *Packetizer) writeContinuous(b []byte) error {
	for len(b) > 0 {
		n, err := pk.frame.WriteDataAt(pk.offset, b)
		if err != nil {
			return err
		}
		pk.offset += n
		b = b[n:]
		if pk.offset == cadu.DataZoneLength {
			if err := pk.emitContinuous(len(b)); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitContinuous writes the full frame and opens the next one. remaining is
// the number of bytes of the current packet still to be written; the next
// frame's pointer skips over them.
func (pk *Packetizer) emitContinuous(remaining int) error {
	if err := pk.emit(pk.frame); err != nil {
		return err
	}
	pointer := uint16(cadu.FirstHeaderPointerNone)
	if remaining < cadu.DataZoneLength {
		pointer = uint16(remaining)
	}
	f, err := pk.stamp.frame(pointer)
	if err != nil {
		return err
	}
	pk.frame = f
	pk.offset = 0
	return nil
}

func (pk *Packetizer) writePadded(raw []byte) error {
	space := cadu.DataZoneLength - pk.start
	size := len(raw)
	if size != space && size+ccsds.MinPacketLength > space {
		pk.skipped++
		if pk.metrics != nil {
			pk.metrics.IncSkippedPacket()
		}
		pk.logf("skipping packet of %d bytes: %d bytes available at offset %d and no room for a fill packet", size, space, pk.start)
		return nil
	}
	f, err := pk.stamp.frame(uint16(pk.start))
	if err != nil {
		return err
	}
	if _, err := f.WriteDataAt(pk.start, raw); err != nil {
		return err
	}
	if size < space {
		fill, err := pk.fillBytes(space - size)
		if err != nil {
			return err
		}
		if _, err := f.WriteDataAt(pk.start+size, fill); err != nil {
			return err
		}
	}
	return pk.emit(f)
}

func (pk *Packetizer) emit(f *cadu.Frame) error {
	if err := pk.sink.WriteFrame(f); err != nil {
		return err
	}
	pk.frames++
	pk.stamp.advance()
	return nil
}

func (pk *Packetizer) fillBytes(size int) ([]byte, error) {
	fill, err := ccsds.NewFillPacket(size)
	if err != nil {
		return nil, err
	}
	if pk.metrics != nil {
		pk.metrics.IncFillPacket()
	}
	return fill.MarshalBinary()
}

// Close pads and emits a partially filled frame. When fewer than seven bytes
// remain the fill packet spills into one more frame whose pointer is the
// no-header sentinel. Further writes fail with ErrClosed.
func (pk *Packetizer) Close() error {
	if pk.closed {
		return nil
	}
	pk.closed = true
	if pk.padded || pk.offset == 0 {
		return nil
	}
	space := cadu.DataZoneLength - pk.offset
	size := space
	if space < ccsds.MinPacketLength {
		size += cadu.DataZoneLength
	}
	fill, err := pk.fillBytes(size)
	if err != nil {
		return err
	}
	return pk.writeContinuous(fill)
}

// Offset is the next free position in the open frame's data zone.
func (pk *Packetizer) Offset() int {
	return pk.offset
}

// FrameCount is the counter value of the next frame to be emitted.
func (pk *Packetizer) FrameCount() uint32 {
	return pk.stamp.counter
}

// Frames is the number of frames emitted.
func (pk *Packetizer) Frames() int64 {
	return pk.frames
}

// Skipped is the number of packets dropped in padded mode.
func (pk *Packetizer) Skipped() int64 {
	return pk.skipped
}
