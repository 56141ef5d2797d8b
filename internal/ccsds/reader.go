package ccsds

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Reader decodes a contiguous packet stream.
type Reader struct {
	r      *bufio.Reader
	offset int64
	count  int64
}

func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64*1024)
	}
	return &Reader{r: br}
}

// Next returns the next packet. A stream that ends between packets yields
// io.EOF; one that ends inside a packet yields ErrTruncatedHeader or
// ErrTruncatedData.
func (r *Reader) Next() (*Packet, error) {
	p := &Packet{}
	n, err := io.ReadFull(r.r, p.header[:])
	r.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %d of %d bytes at offset %d", ErrTruncatedHeader, n, HeaderLength, r.offset-int64(n))
		}
		return nil, err
	}
	size := int(p.DataLength()) + 1
	p.data = make([]byte, size)
	n, err = io.ReadFull(r.r, p.data)
	r.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %d of %d bytes for app id %d", ErrTruncatedData, n, size, p.AppID())
		}
		return nil, err
	}
	r.count++
	return p, nil
}

// Offset is the number of bytes consumed.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Count is the number of complete packets returned.
func (r *Reader) Count() int64 {
	return r.count
}
