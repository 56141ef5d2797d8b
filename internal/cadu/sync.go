package cadu

import (
	"bufio"
	"io"
)

// Synchronizer locates attached sync markers in a byte stream by shifting each
// byte into a 32-bit register. It also serves as the byte source for the frame
// bodies that follow the markers, so offsets stay consistent.
type Synchronizer struct {
	r        *bufio.Reader
	consumed int64
	skipped  int64
}

func NewSynchronizer(r io.Reader) *Synchronizer {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64*1024)
	}
	return &Synchronizer{r: br}
}

// Next consumes bytes up to and including the next sync marker and returns the
// stream offset of the marker's first byte. It returns io.EOF when the stream
// ends before a marker is found.
func (s *Synchronizer) Next() (int64, error) {
	var reg uint32
	var seen int64
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			s.skipped += seen
			if err == io.EOF {
				return s.consumed, io.EOF
			}
			return s.consumed, err
		}
		s.consumed++
		seen++
		reg = reg<<8 | uint32(b)
		if seen >= SyncMarkerLength && reg == SyncMarker {
			s.skipped += seen - SyncMarkerLength
			return s.consumed - SyncMarkerLength, nil
		}
	}
}

// Read reads frame bytes directly from the stream.
func (s *Synchronizer) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.consumed += int64(n)
	return n, err
}

// Offset is the number of bytes consumed so far.
func (s *Synchronizer) Offset() int64 {
	return s.consumed
}

// Skipped is the number of bytes discarded while hunting for markers.
func (s *Synchronizer) Skipped() int64 {
	return s.skipped
}

// CountMarkers returns the number of byte-aligned sync markers in r. Markers
// may overlap frame bodies; the stream is not interpreted as frames.
func CountMarkers(r io.Reader) (int, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var reg uint32
	var seen, count int
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		seen++
		reg = reg<<8 | uint32(b)
		if seen >= SyncMarkerLength && reg == SyncMarker {
			count++
		}
	}
}
