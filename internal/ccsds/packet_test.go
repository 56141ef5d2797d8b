package ccsds

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestHeaderFieldsWireLayout(t *testing.T) {
	p, err := NewPacket([]byte{0xAA, 0xBB, 0xCC})
	if err != nil {
		t.Fatalf("NewPacket: %v", err)
	}
	if err := p.SetVersion(5); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	if err := p.SetType(TypeTelecommand); err != nil {
		t.Fatalf("SetType: %v", err)
	}
	p.SetSecondaryHeaderFlag(true)
	if err := p.SetAppID(0x5A5); err != nil {
		t.Fatalf("SetAppID: %v", err)
	}
	if err := p.SetSeqFlags(SeqFirst); err != nil {
		t.Fatalf("SetSeqFlags: %v", err)
	}
	if err := p.SetSeqCount(0x2ABC); err != nil {
		t.Fatalf("SetSeqCount: %v", err)
	}

	raw, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	want := []byte{0xBD, 0xA5, 0x6A, 0xBC, 0x00, 0x02, 0xAA, 0xBB, 0xCC}
	if !bytes.Equal(raw, want) {
		t.Fatalf("raw = % X, want % X", raw, want)
	}

	q, n, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if q.Version() != 5 || q.Type() != TypeTelecommand || !q.SecondaryHeaderFlag() ||
		q.AppID() != 0x5A5 || q.SeqFlags() != SeqFirst || q.SeqCount() != 0x2ABC || q.DataLength() != 2 {
		t.Fatalf("parsed header mismatch: v=%d t=%d apid=%d flags=%d cnt=%d len=%d",
			q.Version(), q.Type(), q.AppID(), q.SeqFlags(), q.SeqCount(), q.DataLength())
	}
}

func TestSettersRejectOutOfRange(t *testing.T) {
	p := &Packet{}
	tests := []struct {
		name string
		set  func() error
	}{
		{"version", func() error { return p.SetVersion(8) }},
		{"type", func() error { return p.SetType(2) }},
		{"app id", func() error { return p.SetAppID(2048) }},
		{"seq flags", func() error { return p.SetSeqFlags(4) }},
		{"seq count", func() error { return p.SetSeqCount(SeqCountModulus) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.set(); !errors.Is(err, ErrFieldRange) {
				t.Fatalf("error = %v, want ErrFieldRange", err)
			}
		})
	}
}

func TestDataFieldContract(t *testing.T) {
	p := &Packet{}
	if err := p.SetData(nil); !errors.Is(err, ErrEmptyDataField) {
		t.Fatalf("SetData(nil) = %v, want ErrEmptyDataField", err)
	}
	if err := p.SetData(make([]byte, MaxDataLength+1)); !errors.Is(err, ErrDataFieldTooLong) {
		t.Fatalf("SetData oversize = %v, want ErrDataFieldTooLong", err)
	}
	if _, err := p.MarshalBinary(); !errors.Is(err, ErrEmptyDataField) {
		t.Fatalf("MarshalBinary empty = %v, want ErrEmptyDataField", err)
	}
	if err := p.SetData(make([]byte, MaxDataLength)); err != nil {
		t.Fatalf("SetData max: %v", err)
	}
	raw, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(raw) != MaxPacketLength || p.DataLength() != 0xFFFF {
		t.Fatalf("len=%d stored=%d", len(raw), p.DataLength())
	}
}

func TestSetDataLengthIsAuthoritative(t *testing.T) {
	p, _ := NewPacket([]byte{1, 2, 3, 4})
	p.SetDataLength(1)
	if got := p.Data(); !bytes.Equal(got, []byte{1, 2}) {
		t.Fatalf("Data = % X, want 01 02", got)
	}
	p.SetDataLength(5)
	if got := p.Data(); !bytes.Equal(got, []byte{1, 2, 0, 0, 0, 0}) {
		t.Fatalf("Data = % X after growth", got)
	}
	raw, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(raw) != HeaderLength+6 {
		t.Fatalf("len = %d, want %d", len(raw), HeaderLength+6)
	}
}

func TestParseLengthMismatchOnTamper(t *testing.T) {
	p, _ := NewPacket([]byte{1, 2, 3})
	p.SetDataLength(2)
	p.data = p.data[:1]
	if _, err := p.MarshalBinary(); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("MarshalBinary = %v, want ErrLengthMismatch", err)
	}
}

func TestFillPacket(t *testing.T) {
	for _, size := range []int{MinPacketLength, 652, 890} {
		p, err := NewFillPacket(size)
		if err != nil {
			t.Fatalf("NewFillPacket(%d): %v", size, err)
		}
		raw, err := p.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary: %v", err)
		}
		if len(raw) != size {
			t.Fatalf("fill len = %d, want %d", len(raw), size)
		}
		if raw[0] != 0x07 || raw[1] != 0xFF || raw[2] != 0xC0 || raw[3] != 0x00 {
			t.Fatalf("fill header = % X", raw[:4])
		}
		if !p.IsFill() {
			t.Fatalf("IsFill = false")
		}
		for _, b := range raw[HeaderLength:] {
			if b != 0 {
				t.Fatalf("fill data not zero")
			}
		}
	}
	if _, err := NewFillPacket(MinPacketLength - 1); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("NewFillPacket(6) = %v, want ErrInvalidLength", err)
	}
}

func TestReaderStream(t *testing.T) {
	var buf bytes.Buffer
	sizes := []int{1, 100, 4096}
	for i, size := range sizes {
		p, _ := NewPacket(bytes.Repeat([]byte{byte(i + 1)}, size))
		_ = p.SetAppID(uint16(64 + i))
		if _, err := p.WriteTo(&buf); err != nil {
			t.Fatalf("WriteTo: %v", err)
		}
	}
	r := NewReader(&buf)
	for i, size := range sizes {
		p, err := r.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if len(p.Data()) != size || p.AppID() != uint16(64+i) {
			t.Fatalf("packet %d: len=%d apid=%d", i, len(p.Data()), p.AppID())
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next at end = %v, want io.EOF", err)
	}
	if r.Count() != 3 {
		t.Fatalf("Count = %d, want 3", r.Count())
	}
}

func TestReaderTruncation(t *testing.T) {
	p, _ := NewPacket(make([]byte, 10))
	raw, _ := p.MarshalBinary()
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"short header", raw[:3], ErrTruncatedHeader},
		{"short data", raw[:HeaderLength+4], ErrTruncatedData},
		{"header only", raw[:HeaderLength], ErrTruncatedData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tc.in)).Next()
			if !errors.Is(err, tc.want) {
				t.Fatalf("Next = %v, want %v", err, tc.want)
			}
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatalf("truncation should match io.ErrUnexpectedEOF")
			}
		})
	}
	if _, _, err := Parse(raw[:HeaderLength+1]); !errors.Is(err, ErrTruncatedData) {
		t.Fatalf("Parse = %v, want ErrTruncatedData", err)
	}
}

func TestSplitDataField(t *testing.T) {
	p, _ := NewPacket([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	df, err := p.SplitDataField(8)
	if err != nil {
		t.Fatalf("SplitDataField: %v", err)
	}
	if df.Kind != UserDataOnly || len(df.UserData) != 10 {
		t.Fatalf("flag clear: kind=%v len=%d", df.Kind, len(df.UserData))
	}
	p.SetSecondaryHeaderFlag(true)
	df, err = p.SplitDataField(8)
	if err != nil {
		t.Fatalf("SplitDataField: %v", err)
	}
	if df.Kind != WithSecondaryHeader || len(df.SecondaryHeader) != 8 || !bytes.Equal(df.UserData, []byte{9, 10}) {
		t.Fatalf("flag set: kind=%v sec=%d user=% X", df.Kind, len(df.SecondaryHeader), df.UserData)
	}
	if _, err := p.SplitDataField(11); !errors.Is(err, ErrShortDataField) {
		t.Fatalf("SplitDataField(11) = %v, want ErrShortDataField", err)
	}
}
