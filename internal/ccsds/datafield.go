package ccsds

import (
	"errors"
	"fmt"
)

// DataFieldKind tags the shape of a packet's data field.
type DataFieldKind int

const (
	// UserDataOnly is a data field without a secondary header.
	UserDataOnly DataFieldKind = iota
	// WithSecondaryHeader carries a fixed-length secondary header before the
	// user data.
	WithSecondaryHeader
)

func (k DataFieldKind) String() string {
	switch k {
	case UserDataOnly:
		return "user-data"
	case WithSecondaryHeader:
		return "secondary-header"
	default:
		return fmt.Sprintf("DataFieldKind(%d)", int(k))
	}
}

var ErrShortDataField = errors.New("ccsds: data field shorter than secondary header")

// DataField is a view of a packet's data field. Both slices alias the packet.
type DataField struct {
	Kind            DataFieldKind
	SecondaryHeader []byte
	UserData        []byte
}

// SplitDataField selects the data field shape from the secondary header flag.
// secHdrLen is the mission-defined secondary header length; it is ignored when
// the flag is clear.
func (p *Packet) SplitDataField(secHdrLen int) (DataField, error) {
	if !p.SecondaryHeaderFlag() || secHdrLen <= 0 {
		return DataField{Kind: UserDataOnly, UserData: p.data}, nil
	}
	if len(p.data) < secHdrLen {
		return DataField{}, fmt.Errorf("%w: %d bytes, secondary header %d", ErrShortDataField, len(p.data), secHdrLen)
	}
	return DataField{
		Kind:            WithSecondaryHeader,
		SecondaryHeader: p.data[:secHdrLen],
		UserData:        p.data[secHdrLen:],
	}, nil
}
