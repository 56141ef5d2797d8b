// Package cadu models 1024-byte Channel Access Data Units: the attached sync
// marker, the VCDU primary header, the M_PDU data zone and the interleaved
// Reed-Solomon check symbols.
package cadu

import "example.com/cadugate/internal/rs"

const (
	SyncMarker       uint32 = 0x1ACFFC1D
	SyncMarkerLength        = 4

	FrameLength    = 1024
	CVCDULength    = FrameLength - SyncMarkerLength
	ChecksumLength = 128
	VCPDULength    = CVCDULength - ChecksumLength
	HeaderLength   = 8
	DataZoneLength = VCPDULength - HeaderLength

	InterleaveDepth = 4
)

// Header field widths in bits.
const (
	VersionBits            = 2
	SpacecraftIDBits       = 8
	VirtualChannelIDBits   = 6
	FrameCountBits         = 24
	ReplayFlagBits         = 1
	VCDUSpareBits          = 7
	MPDUSpareBits          = 5
	FirstHeaderPointerBits = 11
)

const (
	// FirstHeaderPointerNone marks a data zone without a packet start.
	FirstHeaderPointerNone = 1<<FirstHeaderPointerBits - 1
	// FirstHeaderPointerReserved is never produced by the packetizer.
	FirstHeaderPointerReserved = FirstHeaderPointerNone - 1

	FrameCountModulus = 1 << FrameCountBits
)

var syncMarkerBytes = [SyncMarkerLength]byte{0x1A, 0xCF, 0xFC, 0x1D}

// Layout checks evaluated at compile time.
var (
	_ [VCPDULength - InterleaveDepth*rs.K]struct{}
	_ [InterleaveDepth*rs.K - VCPDULength]struct{}
	_ [ChecksumLength - InterleaveDepth*rs.ParityLen]struct{}
	_ [InterleaveDepth*rs.ParityLen - ChecksumLength]struct{}
	_ [VersionBits + SpacecraftIDBits + VirtualChannelIDBits + FrameCountBits + ReplayFlagBits + VCDUSpareBits + MPDUSpareBits + FirstHeaderPointerBits - 8*HeaderLength]struct{}
	_ [8*HeaderLength - (VersionBits + SpacecraftIDBits + VirtualChannelIDBits + FrameCountBits + ReplayFlagBits + VCDUSpareBits + MPDUSpareBits + FirstHeaderPointerBits)]struct{}
)
