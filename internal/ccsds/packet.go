// Package ccsds encodes and decodes CCSDS space packets: a 6-byte primary
// header followed by a data field of 1 to 65536 bytes.
package ccsds

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderLength     = 6
	MaxDataLength    = 1 << 16
	MinPacketLength  = HeaderLength + 1
	MaxPacketLength  = HeaderLength + MaxDataLength
	VersionBits      = 3
	TypeBits         = 1
	SecHdrFlagBits   = 1
	AppIDBits        = 11
	SeqFlagsBits     = 2
	SeqCountBits     = 14
	DataLengthBits   = 16
	SeqCountModulus  = 1 << SeqCountBits
	FillAppID        = 1<<AppIDBits - 1
)

const (
	TypeTelemetry   uint8 = 0
	TypeTelecommand uint8 = 1
)

// Sequence flag values.
const (
	SeqContinuation uint8 = 0
	SeqFirst        uint8 = 1
	SeqLast         uint8 = 2
	SeqUnsegmented  uint8 = 3
)

var (
	ErrFieldRange       = errors.New("ccsds: field value out of range")
	ErrEmptyDataField   = errors.New("ccsds: data field must contain at least one byte")
	ErrDataFieldTooLong = errors.New("ccsds: data field exceeds 65536 bytes")
	ErrLengthMismatch   = errors.New("ccsds: data length field does not match data field")
	ErrInvalidLength    = errors.New("ccsds: invalid packet length")

	// ErrTruncatedHeader and ErrTruncatedData match io.ErrUnexpectedEOF.
	ErrTruncatedHeader = fmt.Errorf("ccsds: truncated primary header: %w", io.ErrUnexpectedEOF)
	ErrTruncatedData   = fmt.Errorf("ccsds: truncated data field: %w", io.ErrUnexpectedEOF)
)

// Packet is a single CCSDS space packet. When the data field is replaced
// through SetData the length field is recalculated on serialization; after
// SetDataLength the stored length is authoritative.
type Packet struct {
	header      [HeaderLength]byte
	data        []byte
	dirtyLength bool
}

// NewPacket returns a packet with the given data field.
func NewPacket(data []byte) (*Packet, error) {
	p := &Packet{}
	if err := p.SetData(data); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Packet) Version() uint8 {
	return p.header[0] >> 5
}

func (p *Packet) SetVersion(v uint8) error {
	if err := checkWidth("version", uint64(v), VersionBits); err != nil {
		return err
	}
	p.header[0] = p.header[0]&0x1F | v<<5
	return nil
}

func (p *Packet) Type() uint8 {
	return p.header[0] >> 4 & 0x01
}

func (p *Packet) SetType(t uint8) error {
	if err := checkWidth("type", uint64(t), TypeBits); err != nil {
		return err
	}
	p.header[0] = p.header[0]&^0x10 | t<<4
	return nil
}

func (p *Packet) SecondaryHeaderFlag() bool {
	return p.header[0]&0x08 != 0
}

func (p *Packet) SetSecondaryHeaderFlag(set bool) {
	if set {
		p.header[0] |= 0x08
	} else {
		p.header[0] &^= 0x08
	}
}

func (p *Packet) AppID() uint16 {
	return binary.BigEndian.Uint16(p.header[0:2]) & FillAppID
}

func (p *Packet) SetAppID(id uint16) error {
	if err := checkWidth("application id", uint64(id), AppIDBits); err != nil {
		return err
	}
	p.header[0] = p.header[0]&0xF8 | byte(id>>8)
	p.header[1] = byte(id)
	return nil
}

func (p *Packet) SeqFlags() uint8 {
	return p.header[2] >> 6
}

func (p *Packet) SetSeqFlags(f uint8) error {
	if err := checkWidth("sequence flags", uint64(f), SeqFlagsBits); err != nil {
		return err
	}
	p.header[2] = p.header[2]&0x3F | f<<6
	return nil
}

// SeqCount is the sequence count or packet name.
func (p *Packet) SeqCount() uint16 {
	return binary.BigEndian.Uint16(p.header[2:4]) & (SeqCountModulus - 1)
}

func (p *Packet) SetSeqCount(n uint16) error {
	if err := checkWidth("sequence count", uint64(n), SeqCountBits); err != nil {
		return err
	}
	p.header[2] = p.header[2]&0xC0 | byte(n>>8)
	p.header[3] = byte(n)
	return nil
}

// DataLength is the stored length field: data field size minus one.
func (p *Packet) DataLength() uint16 {
	return binary.BigEndian.Uint16(p.header[4:6])
}

// SetDataLength stores n and resizes the data field to n+1 bytes, zero
// filling any growth.
func (p *Packet) SetDataLength(n uint16) {
	binary.BigEndian.PutUint16(p.header[4:6], n)
	size := int(n) + 1
	if cap(p.data) >= size {
		old := len(p.data)
		p.data = p.data[:size]
		if size > old {
			clear(p.data[old:])
		}
	} else {
		grown := make([]byte, size)
		copy(grown, p.data)
		p.data = grown
	}
	p.dirtyLength = false
}

// Data returns the data field. The slice aliases the packet.
func (p *Packet) Data() []byte {
	return p.data
}

// SetData copies d into the data field.
func (p *Packet) SetData(d []byte) error {
	if len(d) == 0 {
		return ErrEmptyDataField
	}
	if len(d) > MaxDataLength {
		return fmt.Errorf("%w: %d bytes", ErrDataFieldTooLong, len(d))
	}
	p.data = append(p.data[:0], d...)
	p.dirtyLength = true
	return nil
}

// Len is the serialized size.
func (p *Packet) Len() int {
	return HeaderLength + len(p.data)
}

// Header returns the primary header bytes, recalculating a pending length.
func (p *Packet) Header() ([HeaderLength]byte, error) {
	if err := p.finalize(); err != nil {
		return [HeaderLength]byte{}, err
	}
	return p.header, nil
}

func (p *Packet) finalize() error {
	if len(p.data) == 0 {
		return ErrEmptyDataField
	}
	if p.dirtyLength {
		binary.BigEndian.PutUint16(p.header[4:6], uint16(len(p.data)-1))
		p.dirtyLength = false
		return nil
	}
	if int(p.DataLength())+1 != len(p.data) {
		return fmt.Errorf("%w: length field %d, data field %d bytes", ErrLengthMismatch, p.DataLength(), len(p.data))
	}
	return nil
}

func (p *Packet) MarshalBinary() ([]byte, error) {
	return p.AppendBinary(make([]byte, 0, p.Len()))
}

func (p *Packet) AppendBinary(b []byte) ([]byte, error) {
	if err := p.finalize(); err != nil {
		return b, err
	}
	b = append(b, p.header[:]...)
	return append(b, p.data...), nil
}

func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	if err := p.finalize(); err != nil {
		return 0, err
	}
	n, err := w.Write(p.header[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(p.data)
	return int64(n + m), err
}

// Parse decodes one packet from the start of b and returns it with the number
// of bytes consumed.
func Parse(b []byte) (*Packet, int, error) {
	if len(b) < HeaderLength {
		return nil, 0, fmt.Errorf("%w: %d of %d bytes", ErrTruncatedHeader, len(b), HeaderLength)
	}
	p := &Packet{}
	copy(p.header[:], b)
	size := int(p.DataLength()) + 1
	if len(b)-HeaderLength < size {
		return nil, 0, fmt.Errorf("%w: %d of %d bytes", ErrTruncatedData, len(b)-HeaderLength, size)
	}
	p.data = make([]byte, size)
	copy(p.data, b[HeaderLength:])
	return p, HeaderLength + size, nil
}

// ParseHeader decodes a primary header without a data field.
func ParseHeader(b []byte) (*Packet, error) {
	if len(b) < HeaderLength {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrTruncatedHeader, len(b), HeaderLength)
	}
	p := &Packet{}
	copy(p.header[:], b)
	return p, nil
}

// NewFillPacket returns an idle packet of exactly size bytes including its
// header: application id 2047, sequence flags 3, zero data.
func NewFillPacket(size int) (*Packet, error) {
	if size < MinPacketLength || size > MaxPacketLength {
		return nil, fmt.Errorf("%w: fill packet of %d bytes", ErrInvalidLength, size)
	}
	p := &Packet{}
	_ = p.SetAppID(FillAppID)
	_ = p.SetSeqFlags(SeqUnsegmented)
	p.SetDataLength(uint16(size - HeaderLength - 1))
	return p, nil
}

// IsFill reports whether the packet carries the idle application id.
func (p *Packet) IsFill() bool {
	return p.AppID() == FillAppID
}

func checkWidth(name string, v uint64, bits int) error {
	if v >= 1<<bits {
		return fmt.Errorf("%w: %s %d does not fit in %d bits", ErrFieldRange, name, v, bits)
	}
	return nil
}
