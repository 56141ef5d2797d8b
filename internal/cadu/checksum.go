package cadu

import "example.com/cadugate/internal/rs"

// ParityEncoder produces the 32 check symbols of one RS(255,223) block.
type ParityEncoder interface {
	Encode(block [rs.K]byte) [rs.ParityLen]byte
}

// DefaultEncoder is the CCSDS dual-basis encoder.
var DefaultEncoder ParityEncoder = rs.Default()

// ComputeChecksum returns the interleaved check symbols for an 892-byte VC_PDU.
func ComputeChecksum(enc ParityEncoder, vcpdu []byte) ([ChecksumLength]byte, error) {
	if len(vcpdu) != VCPDULength {
		var zero [ChecksumLength]byte
		return zero, ErrInvalidLength
	}
	return computeChecksum(enc, vcpdu), nil
}

// Sub-block k holds bytes k, k+4, k+8, ...; parity symbol i of sub-block k
// lands at 4*i+k.
func computeChecksum(enc ParityEncoder, vcpdu []byte) [ChecksumLength]byte {
	if enc == nil {
		enc = DefaultEncoder
	}
	var out [ChecksumLength]byte
	var block [rs.K]byte
	for k := 0; k < InterleaveDepth; k++ {
		for i := range block {
			block[i] = vcpdu[InterleaveDepth*i+k]
		}
		parity := enc.Encode(block)
		for i, p := range parity {
			out[InterleaveDepth*i+k] = p
		}
	}
	return out
}
