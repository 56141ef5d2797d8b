package cadu

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrFieldRange     = errors.New("cadu: field value out of range")
	ErrDataTooLong    = errors.New("cadu: data exceeds data zone")
	ErrNoSync         = errors.New("cadu: sync marker 0x1ACFFC1D not found at expected position")
	ErrInvalidLength  = errors.New("cadu: invalid frame length")
	ErrOffsetOutRange = errors.New("cadu: data zone offset out of range")
)

// Byte offsets of the header fields inside the CVCDU.
const (
	offIdent   = 0
	offCounter = 2
	offReplay  = 5
	offPointer = 6
	offData    = HeaderLength
	offCheck   = VCPDULength
)

// Frame is the sync-stripped CVCDU of a single CADU. Header and data mutations
// mark the frame dirty; the checksum is recomputed on the next serialization.
// The zero value is a frame with an all-zero header and data zone.
type Frame struct {
	cvcdu [CVCDULength]byte
	dirty bool
}

// NewFrame returns an empty frame whose checksum is pending.
func NewFrame() *Frame {
	return &Frame{dirty: true}
}

// ParseFrame builds a frame from a 1020-byte CVCDU. The stored checksum is kept
// as read and the frame starts clean.
func ParseFrame(cvcdu []byte) (*Frame, error) {
	if len(cvcdu) != CVCDULength {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(cvcdu), CVCDULength)
	}
	f := &Frame{}
	copy(f.cvcdu[:], cvcdu)
	return f, nil
}

func (f *Frame) Version() uint8 {
	return f.cvcdu[offIdent] >> 6
}

func (f *Frame) SetVersion(v uint8) error {
	if err := checkWidth("version", uint64(v), VersionBits); err != nil {
		return err
	}
	f.cvcdu[offIdent] = f.cvcdu[offIdent]&0x3F | v<<6
	f.dirty = true
	return nil
}

func (f *Frame) SpacecraftID() uint8 {
	return f.cvcdu[offIdent]<<2 | f.cvcdu[offIdent+1]>>6
}

func (f *Frame) SetSpacecraftID(id uint8) {
	f.cvcdu[offIdent] = f.cvcdu[offIdent]&0xC0 | id>>2
	f.cvcdu[offIdent+1] = f.cvcdu[offIdent+1]&0x3F | id<<6
	f.dirty = true
}

func (f *Frame) VirtualChannelID() uint8 {
	return f.cvcdu[offIdent+1] & 0x3F
}

func (f *Frame) SetVirtualChannelID(id uint8) error {
	if err := checkWidth("virtual channel id", uint64(id), VirtualChannelIDBits); err != nil {
		return err
	}
	f.cvcdu[offIdent+1] = f.cvcdu[offIdent+1]&0xC0 | id
	f.dirty = true
	return nil
}

func (f *Frame) FrameCount() uint32 {
	b := f.cvcdu[offCounter : offCounter+3]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func (f *Frame) SetFrameCount(n uint32) error {
	if err := checkWidth("frame count", uint64(n), FrameCountBits); err != nil {
		return err
	}
	f.cvcdu[offCounter] = byte(n >> 16)
	f.cvcdu[offCounter+1] = byte(n >> 8)
	f.cvcdu[offCounter+2] = byte(n)
	f.dirty = true
	return nil
}

func (f *Frame) Replay() bool {
	return f.cvcdu[offReplay]&0x80 != 0
}

func (f *Frame) SetReplay(replay bool) {
	if replay {
		f.cvcdu[offReplay] |= 0x80
	} else {
		f.cvcdu[offReplay] &^= 0x80
	}
	f.dirty = true
}

func (f *Frame) VCDUSpare() uint8 {
	return f.cvcdu[offReplay] & 0x7F
}

func (f *Frame) SetVCDUSpare(v uint8) error {
	if err := checkWidth("vcdu spare", uint64(v), VCDUSpareBits); err != nil {
		return err
	}
	f.cvcdu[offReplay] = f.cvcdu[offReplay]&0x80 | v
	f.dirty = true
	return nil
}

func (f *Frame) MPDUSpare() uint8 {
	return f.cvcdu[offPointer] >> 3
}

func (f *Frame) SetMPDUSpare(v uint8) error {
	if err := checkWidth("m_pdu spare", uint64(v), MPDUSpareBits); err != nil {
		return err
	}
	f.cvcdu[offPointer] = f.cvcdu[offPointer]&0x07 | v<<3
	f.dirty = true
	return nil
}

// FirstHeaderPointer is the offset of the first packet header in the data
// zone, or FirstHeaderPointerNone.
func (f *Frame) FirstHeaderPointer() uint16 {
	return uint16(f.cvcdu[offPointer]&0x07)<<8 | uint16(f.cvcdu[offPointer+1])
}

func (f *Frame) SetFirstHeaderPointer(p uint16) error {
	if err := checkWidth("first header pointer", uint64(p), FirstHeaderPointerBits); err != nil {
		return err
	}
	f.cvcdu[offPointer] = f.cvcdu[offPointer]&0xF8 | byte(p>>8)
	f.cvcdu[offPointer+1] = byte(p)
	f.dirty = true
	return nil
}

// HasPacketStart reports whether the pointer addresses a position inside the
// data zone.
func (f *Frame) HasPacketStart() bool {
	return int(f.FirstHeaderPointer()) < DataZoneLength
}

// Data returns a copy of the 884-byte data zone.
func (f *Frame) Data() []byte {
	out := make([]byte, DataZoneLength)
	copy(out, f.cvcdu[offData:offCheck])
	return out
}

// DataFrom returns a copy of the data zone starting at off.
func (f *Frame) DataFrom(off int) ([]byte, error) {
	if off < 0 || off > DataZoneLength {
		return nil, fmt.Errorf("%w: %d", ErrOffsetOutRange, off)
	}
	out := make([]byte, DataZoneLength-off)
	copy(out, f.cvcdu[offData+off:offCheck])
	return out, nil
}

// SetData replaces the data zone. Shorter input is zero padded.
func (f *Frame) SetData(p []byte) error {
	if len(p) > DataZoneLength {
		return fmt.Errorf("%w: %d bytes", ErrDataTooLong, len(p))
	}
	zone := f.cvcdu[offData:offCheck]
	n := copy(zone, p)
	clear(zone[n:])
	f.dirty = true
	return nil
}

// WriteDataAt copies as much of p as fits into the data zone at off and
// returns the number of bytes written.
func (f *Frame) WriteDataAt(off int, p []byte) (int, error) {
	if off < 0 || off > DataZoneLength {
		return 0, fmt.Errorf("%w: %d", ErrOffsetOutRange, off)
	}
	n := copy(f.cvcdu[offData+off:offCheck], p)
	if n > 0 {
		f.dirty = true
	}
	return n, nil
}

// ClearData zeroes the data zone from off to its end.
func (f *Frame) ClearData(off int) {
	if off < 0 {
		off = 0
	}
	if off >= DataZoneLength {
		return
	}
	clear(f.cvcdu[offData+off : offCheck])
	f.dirty = true
}

// Checksum returns the stored check symbols. On a dirty frame these may be
// stale.
func (f *Frame) Checksum() [ChecksumLength]byte {
	var out [ChecksumLength]byte
	copy(out[:], f.cvcdu[offCheck:])
	return out
}

// Dirty reports whether a mutation happened since the last recompute.
func (f *Frame) Dirty() bool {
	return f.dirty
}

// RecomputeChecksum stores fresh check symbols using DefaultEncoder.
func (f *Frame) RecomputeChecksum() {
	f.RecomputeChecksumWith(DefaultEncoder)
}

func (f *Frame) RecomputeChecksumWith(enc ParityEncoder) {
	sum := computeChecksum(enc, f.cvcdu[:offCheck])
	copy(f.cvcdu[offCheck:], sum[:])
	f.dirty = false
}

// ValidateChecksum reports whether the stored check symbols are current. A
// dirty frame never validates.
func (f *Frame) ValidateChecksum() bool {
	if f.dirty {
		return false
	}
	return f.ChecksumMatches()
}

// ChecksumMatches compares the stored check symbols with the ones computed from
// the current VC_PDU, ignoring the dirty flag.
func (f *Frame) ChecksumMatches() bool {
	sum := computeChecksum(DefaultEncoder, f.cvcdu[:offCheck])
	return bytes.Equal(sum[:], f.cvcdu[offCheck:])
}

// Clone returns an independent copy including the dirty state.
func (f *Frame) Clone() *Frame {
	c := *f
	return &c
}

// CVCDU returns a copy of the 1020 bytes following the sync marker. Pending
// checksums are recomputed first.
func (f *Frame) CVCDU() []byte {
	if f.dirty {
		f.RecomputeChecksum()
	}
	out := make([]byte, CVCDULength)
	copy(out, f.cvcdu[:])
	return out
}

// MarshalBinary returns the full 1024-byte CADU.
func (f *Frame) MarshalBinary() ([]byte, error) {
	return f.AppendBinary(make([]byte, 0, FrameLength))
}

func (f *Frame) AppendBinary(b []byte) ([]byte, error) {
	if f.dirty {
		f.RecomputeChecksum()
	}
	b = append(b, syncMarkerBytes[:]...)
	return append(b, f.cvcdu[:]...), nil
}

// UnmarshalBinary parses a full 1024-byte CADU including its sync marker.
func (f *Frame) UnmarshalBinary(b []byte) error {
	if len(b) != FrameLength {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(b), FrameLength)
	}
	if !bytes.Equal(b[:SyncMarkerLength], syncMarkerBytes[:]) {
		return ErrNoSync
	}
	copy(f.cvcdu[:], b[SyncMarkerLength:])
	f.dirty = false
	return nil
}

func checkWidth(name string, v uint64, bits int) error {
	if v >= 1<<bits {
		return fmt.Errorf("%w: %s %d does not fit in %d bits", ErrFieldRange, name, v, bits)
	}
	return nil
}
