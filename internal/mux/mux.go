// Package mux multiplexes CCSDS packets and raw byte streams into CADU frame
// streams and demultiplexes frame data zones back into byte streams.
package mux

import (
	"errors"
	"fmt"
	"strings"

	"example.com/cadugate/internal/cadu"
	"example.com/cadugate/internal/common"
)

var (
	ErrClosed    = errors.New("mux: write after close")
	ErrBadOffset = errors.New("mux: start offset outside data zone")
	ErrBadMode   = errors.New("mux: unknown mode")
)

// Mode selects how input bytes are laid out in frames.
type Mode int

const (
	ModeRaw Mode = iota
	ModeCCSDS
	ModeCCSDSPadded
)

var modeNames = map[Mode]string{
	ModeRaw:         "raw",
	ModeCCSDS:       "ccsds",
	ModeCCSDSPadded: "ccsdspad",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w %q (want raw, ccsds or ccsdspad)", ErrBadMode, s)
}

// FrameSink consumes frames in emission order. *cadu.Writer and
// *Depacketizer implement it.
type FrameSink interface {
	WriteFrame(f *cadu.Frame) error
}

// HeaderConfig carries the VCDU header values stamped on generated frames.
// FrameCount is the first frame's counter. FirstHeaderPointer is the first
// frame's pointer and start offset in ccsds mode, the fixed packet offset in
// ccsdspad mode and the constant pointer in raw mode.
type HeaderConfig struct {
	Version            uint8
	SpacecraftID       uint8
	VirtualChannelID   uint8
	FrameCount         uint32
	Replay             bool
	VCDUSpare          uint8
	MPDUSpare          uint8
	FirstHeaderPointer uint16
}

// Options configure a packer.
type Options struct {
	Header  HeaderConfig
	Logf    func(format string, args ...interface{})
	Metrics *common.Metrics
}

func (o Options) logf() func(string, ...interface{}) {
	if o.Logf != nil {
		return o.Logf
	}
	return common.Logf
}

// frameStamper builds consecutive frames from a header template.
type frameStamper struct {
	hdr     HeaderConfig
	counter uint32
}

func newFrameStamper(hdr HeaderConfig) (*frameStamper, error) {
	s := &frameStamper{hdr: hdr, counter: hdr.FrameCount}
	if _, err := s.frame(hdr.FirstHeaderPointer); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *frameStamper) frame(pointer uint16) (*cadu.Frame, error) {
	f := cadu.NewFrame()
	if err := f.SetVersion(s.hdr.Version); err != nil {
		return nil, err
	}
	f.SetSpacecraftID(s.hdr.SpacecraftID)
	if err := f.SetVirtualChannelID(s.hdr.VirtualChannelID); err != nil {
		return nil, err
	}
	if err := f.SetFrameCount(s.counter); err != nil {
		return nil, err
	}
	f.SetReplay(s.hdr.Replay)
	if err := f.SetVCDUSpare(s.hdr.VCDUSpare); err != nil {
		return nil, err
	}
	if err := f.SetMPDUSpare(s.hdr.MPDUSpare); err != nil {
		return nil, err
	}
	if err := f.SetFirstHeaderPointer(pointer); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *frameStamper) advance() {
	s.counter = (s.counter + 1) % cadu.FrameCountModulus
}
