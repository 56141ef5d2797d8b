package cadu

const pnLength = 255

// pnSequence is the CCSDS pseudo-noise pattern generated by
// h(x) = x^8 + x^7 + x^5 + x^3 + 1 from an all-ones seed, packed MSB first.
var pnSequence [pnLength]byte

func init() {
	var bits [pnLength * 8]byte
	for i := 0; i < 8; i++ {
		bits[i] = 1
	}
	for n := 8; n < len(bits); n++ {
		bits[n] = bits[n-1] ^ bits[n-3] ^ bits[n-5] ^ bits[n-8]
	}
	for i := range pnSequence {
		var b byte
		for j := 0; j < 8; j++ {
			b = b<<1 | bits[i*8+j]
		}
		pnSequence[i] = b
	}
}

// Randomize XORs p in place with the pseudo-noise sequence, restarting the
// sequence every 255 bytes. Applying it twice restores the input.
func Randomize(p []byte) {
	for i := range p {
		p[i] ^= pnSequence[i%pnLength]
	}
}
