package ccsds

import (
	"bufio"
	"errors"
	"io"
)

// Template holds the header fields stamped on segmented packets.
type Template struct {
	Version    uint8
	Type       uint8
	SecHdrFlag bool
	AppID      uint16
	SeqCount   uint16
}

func (t Template) apply(p *Packet) error {
	if err := p.SetVersion(t.Version); err != nil {
		return err
	}
	if err := p.SetType(t.Type); err != nil {
		return err
	}
	p.SetSecondaryHeaderFlag(t.SecHdrFlag)
	if err := p.SetAppID(t.AppID); err != nil {
		return err
	}
	return p.SetSeqCount(t.SeqCount % SeqCountModulus)
}

// Segment wraps the bytes of r into packets of at most 65536 data bytes. A
// single packet is marked unsegmented; longer input is marked first,
// continuation and last. The sequence count starts at the template value and
// wraps modulo 2^14. Empty input produces no packet.
func Segment(r io.Reader, tmpl Template, emit func(*Packet) error) error {
	br := bufio.NewReaderSize(r, MaxDataLength)
	buf := make([]byte, MaxDataLength)
	seq := tmpl.SeqCount % SeqCountModulus
	for index := 0; ; index++ {
		n, err := io.ReadFull(br, buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}
		if n == 0 {
			return nil
		}
		more := false
		if n == len(buf) {
			if _, perr := br.Peek(1); perr == nil {
				more = true
			} else if !errors.Is(perr, io.EOF) {
				return perr
			}
		}

		p := &Packet{}
		tmpl.SeqCount = seq
		if err := tmpl.apply(p); err != nil {
			return err
		}
		var flags uint8
		switch {
		case index == 0 && !more:
			flags = SeqUnsegmented
		case index == 0:
			flags = SeqFirst
		case more:
			flags = SeqContinuation
		default:
			flags = SeqLast
		}
		_ = p.SetSeqFlags(flags)
		if err := p.SetData(buf[:n]); err != nil {
			return err
		}
		if err := emit(p); err != nil {
			return err
		}
		if !more {
			return nil
		}
		seq = (seq + 1) % SeqCountModulus
	}
}
