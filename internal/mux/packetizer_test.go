package mux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"

	"example.com/cadugate/internal/cadu"
	"example.com/cadugate/internal/ccsds"
)

type frameCollector struct {
	frames []*cadu.Frame
}

func (c *frameCollector) WriteFrame(f *cadu.Frame) error {
	c.frames = append(c.frames, f.Clone())
	return nil
}

func (c *frameCollector) pointers() []uint16 {
	out := make([]uint16, len(c.frames))
	for i, f := range c.frames {
		out[i] = f.FirstHeaderPointer()
	}
	return out
}

// testPacket returns a serialized packet of total bytes with a counting data
// pattern.
func testPacket(t *testing.T, total int, apid uint16) []byte {
	t.Helper()
	data := make([]byte, total-ccsds.HeaderLength)
	for i := range data {
		data[i] = byte(i%251 + 1)
	}
	p, err := ccsds.NewPacket(data)
	if err != nil {
		t.Fatalf("NewPacket: %v", err)
	}
	if err := p.SetAppID(apid); err != nil {
		t.Fatalf("SetAppID: %v", err)
	}
	raw, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	return raw
}

func packAll(t *testing.T, opts Options, packets ...[]byte) (*frameCollector, *Packetizer) {
	t.Helper()
	sink := &frameCollector{}
	pk, err := NewPacketizer(sink, opts)
	if err != nil {
		t.Fatalf("NewPacketizer: %v", err)
	}
	for _, raw := range packets {
		if err := pk.WritePacketBytes(raw); err != nil {
			t.Fatalf("WritePacketBytes: %v", err)
		}
	}
	if err := pk.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return sink, pk
}

func unpack(t *testing.T, frames []*cadu.Frame) []*ccsds.Packet {
	t.Helper()
	var buf bytes.Buffer
	d := NewDepacketizer(&buf, DepacketizerOptions{Report: func(DiscardReport) {}})
	for _, f := range frames {
		if err := d.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r := ccsds.NewReader(&buf)
	var out []*ccsds.Packet
	for {
		p, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, p)
	}
}

func equalPointers(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScenarioPackAndUnpack(t *testing.T) {
	original := testPacket(t, 2000, 64)
	sink, pk := packAll(t, Options{Header: HeaderConfig{SpacecraftID: 154, VirtualChannelID: 30}}, original)

	want := []uint16{0, cadu.FirstHeaderPointerNone, 232}
	if got := sink.pointers(); !equalPointers(got, want) {
		t.Fatalf("pointers = %v, want %v", got, want)
	}
	for i, f := range sink.frames {
		if f.FrameCount() != uint32(i) {
			t.Fatalf("frame %d counter = %d", i, f.FrameCount())
		}
		if f.SpacecraftID() != 154 || f.VirtualChannelID() != 30 {
			t.Fatalf("frame %d header scid=%d vcid=%d", i, f.SpacecraftID(), f.VirtualChannelID())
		}
	}
	fill, err := sink.frames[2].DataFrom(232)
	if err != nil {
		t.Fatalf("DataFrom: %v", err)
	}
	fp, n, err := ccsds.Parse(fill)
	if err != nil {
		t.Fatalf("Parse fill: %v", err)
	}
	if !fp.IsFill() || n != 652 {
		t.Fatalf("fill packet: fill=%v len=%d, want fill of 652", fp.IsFill(), n)
	}
	if pk.Frames() != 3 {
		t.Fatalf("Frames = %d, want 3", pk.Frames())
	}

	packets := unpack(t, sink.frames)
	if len(packets) != 2 {
		t.Fatalf("unpacked %d packets, want 2", len(packets))
	}
	got, _ := packets[0].MarshalBinary()
	if !bytes.Equal(got, original) {
		t.Fatalf("reassembled packet differs from original")
	}
	if !packets[1].IsFill() {
		t.Fatalf("second packet should be fill")
	}
}

func TestExactFrameSizedPacket(t *testing.T) {
	sink := &frameCollector{}
	pk, err := NewPacketizer(sink, Options{})
	if err != nil {
		t.Fatalf("NewPacketizer: %v", err)
	}
	if err := pk.WritePacketBytes(testPacket(t, cadu.DataZoneLength, 1)); err != nil {
		t.Fatalf("WritePacketBytes: %v", err)
	}
	if len(sink.frames) != 1 || pk.Offset() != 0 {
		t.Fatalf("frames=%d offset=%d, want 1 and 0", len(sink.frames), pk.Offset())
	}
	if err := pk.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("Close emitted a fill frame for an empty cursor")
	}
	if pk.FrameCount() != 1 {
		t.Fatalf("FrameCount = %d, want 1", pk.FrameCount())
	}
}

func TestPointerSequences(t *testing.T) {
	none := uint16(cadu.FirstHeaderPointerNone)
	tests := []struct {
		name    string
		start   uint16
		packets []int
		want    []uint16
	}{
		{"interior frames use sentinel", 0, []int{3000}, []uint16{0, none, none, 348}},
		{"tail fills whole frame", 0, []int{2 * cadu.DataZoneLength}, []uint16{0, none}},
		{"header and data", 0, []int{890}, []uint16{0, 6}},
		{"two packets", 0, []int{500, 500}, []uint16{0, 116}},
		{"start offset", 100, []int{800}, []uint16{100, 16}},
		{"fill spills into sentinel frame", 0, []int{880}, []uint16{0, none}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var packets [][]byte
			for i, size := range tc.packets {
				packets = append(packets, testPacket(t, size, uint16(10+i)))
			}
			sink, _ := packAll(t, Options{Header: HeaderConfig{FirstHeaderPointer: tc.start}}, packets...)
			if got := sink.pointers(); !equalPointers(got, tc.want) {
				t.Fatalf("pointers = %v, want %v", got, tc.want)
			}
			if tc.start == 0 {
				got := unpack(t, sink.frames)
				if len(got) < len(packets) {
					t.Fatalf("unpacked %d packets, want at least %d", len(got), len(packets))
				}
				for i, raw := range packets {
					b, _ := got[i].MarshalBinary()
					if !bytes.Equal(b, raw) {
						t.Fatalf("packet %d differs after round trip", i)
					}
				}
				for _, p := range got[len(packets):] {
					if !p.IsFill() {
						t.Fatalf("trailing packet app id %d, want fill", p.AppID())
					}
				}
			}
		})
	}
}

func TestSpillingFillPacketSize(t *testing.T) {
	sink, _ := packAll(t, Options{}, testPacket(t, 880, 3))
	packets := unpack(t, sink.frames)
	if len(packets) != 2 {
		t.Fatalf("unpacked %d packets, want 2", len(packets))
	}
	if n := packets[1].Len(); n != 4+cadu.DataZoneLength {
		t.Fatalf("fill length = %d, want %d", n, 4+cadu.DataZoneLength)
	}
}

func TestPaddedPacketizer(t *testing.T) {
	var logs []string
	sink := &frameCollector{}
	opts := Options{
		Header: HeaderConfig{FirstHeaderPointer: 10},
		Logf: func(format string, args ...interface{}) {
			logs = append(logs, fmt.Sprintf(format, args...))
		},
	}
	pk, err := NewPaddedPacketizer(sink, opts)
	if err != nil {
		t.Fatalf("NewPaddedPacketizer: %v", err)
	}
	space := cadu.DataZoneLength - 10
	for _, size := range []int{500, space, space - 4, space + 16, ccsds.MinPacketLength} {
		if err := pk.WritePacketBytes(testPacket(t, size, 64)); err != nil {
			t.Fatalf("WritePacketBytes(%d): %v", size, err)
		}
	}
	if err := pk.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(sink.frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(sink.frames))
	}
	if pk.Skipped() != 2 || len(logs) != 2 {
		t.Fatalf("skipped=%d logs=%d, want 2 and 2", pk.Skipped(), len(logs))
	}
	if !strings.Contains(logs[0], "skipping packet") {
		t.Fatalf("log = %q", logs[0])
	}
	for i, f := range sink.frames {
		if f.FirstHeaderPointer() != 10 {
			t.Fatalf("frame %d pointer = %d, want 10", i, f.FirstHeaderPointer())
		}
		if f.FrameCount() != uint32(i) {
			t.Fatalf("frame %d counter = %d", i, f.FrameCount())
		}
		zone := f.Data()
		if !bytes.Equal(zone[:10], make([]byte, 10)) {
			t.Fatalf("frame %d prefix not zero", i)
		}
		used := 10
		for used < cadu.DataZoneLength {
			_, n, err := ccsds.Parse(zone[used:])
			if err != nil {
				t.Fatalf("frame %d: parse at %d: %v", i, used, err)
			}
			used += n
		}
		if used != cadu.DataZoneLength {
			t.Fatalf("frame %d packets end at %d", i, used)
		}
	}
}

func TestPacketizerRejectsBadConfig(t *testing.T) {
	if _, err := NewPacketizer(&frameCollector{}, Options{Header: HeaderConfig{FirstHeaderPointer: cadu.DataZoneLength}}); !errors.Is(err, ErrBadOffset) {
		t.Fatalf("ccsds offset = %v, want ErrBadOffset", err)
	}
	if _, err := NewPaddedPacketizer(&frameCollector{}, Options{Header: HeaderConfig{FirstHeaderPointer: cadu.DataZoneLength - 6}}); !errors.Is(err, ErrBadOffset) {
		t.Fatalf("padded offset = %v, want ErrBadOffset", err)
	}
	if _, err := NewPacketizer(&frameCollector{}, Options{Header: HeaderConfig{VirtualChannelID: 64}}); !errors.Is(err, cadu.ErrFieldRange) {
		t.Fatalf("vcid = %v, want cadu.ErrFieldRange", err)
	}
	if _, err := NewRawPacker(&frameCollector{}, Options{Header: HeaderConfig{FrameCount: cadu.FrameCountModulus}}); !errors.Is(err, cadu.ErrFieldRange) {
		t.Fatalf("counter = %v, want cadu.ErrFieldRange", err)
	}
}

func TestWriteAfterClose(t *testing.T) {
	pk, _ := NewPacketizer(&frameCollector{}, Options{})
	_ = pk.Close()
	if err := pk.WritePacketBytes(testPacket(t, 10, 1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("WritePacketBytes = %v, want ErrClosed", err)
	}
	rp, _ := NewRawPacker(&frameCollector{}, Options{})
	_ = rp.Close()
	if _, err := rp.Write([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write = %v, want ErrClosed", err)
	}
}

func TestEndToEndThroughWire(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var originals [][]byte
	for i := 0; i < 40; i++ {
		originals = append(originals, testPacket(t, ccsds.MinPacketLength+rng.Intn(3000), uint16(i)))
	}

	var wire bytes.Buffer
	w := cadu.NewWriter(&wire, cadu.WriterOptions{Randomized: true})
	pk, err := NewPacketizer(w, Options{Header: HeaderConfig{SpacecraftID: 42, VirtualChannelID: 3}})
	if err != nil {
		t.Fatalf("NewPacketizer: %v", err)
	}
	for _, raw := range originals {
		if err := pk.WritePacketBytes(raw); err != nil {
			t.Fatalf("WritePacketBytes: %v", err)
		}
	}
	if err := pk.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var stream bytes.Buffer
	d := NewDepacketizer(&stream, DepacketizerOptions{Report: func(DiscardReport) {}})
	r := cadu.NewReader(&wire, cadu.ReaderOptions{Randomized: true})
	for {
		f, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !f.ValidateChecksum() {
			t.Fatalf("frame %d fails checksum", f.FrameCount())
		}
		if err := d.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	_ = d.Close()

	pr := ccsds.NewReader(&stream)
	for i, want := range originals {
		p, err := pr.Next()
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		got, _ := p.MarshalBinary()
		if !bytes.Equal(got, want) {
			t.Fatalf("packet %d differs", i)
		}
	}
}
