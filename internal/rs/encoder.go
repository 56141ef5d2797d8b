// Package rs implements the systematic Reed-Solomon (255,223) encoder used for
// CCSDS telemetry channel coding: 8-bit symbols over GF(2^8) with field
// polynomial 0x187, 32 generator roots alpha^(11*j) for j in [112,143], and
// symbols exchanged in the Berlekamp dual basis.
package rs

const (
	N         = 255
	K         = 223
	ParityLen = N - K

	fieldPoly = 0x187
	firstRoot = 112
	primElem  = 11

	// log(0)
	a0 = N
)

// Conventional to dual basis conversion matrix.
var tal = [8]byte{0x8d, 0xef, 0xec, 0x86, 0xfa, 0x99, 0xaf, 0x7b}

// Encoder holds the field and generator tables. It is read-only after
// construction and safe for concurrent use.
type Encoder struct {
	alphaTo [N + 1]byte
	indexOf [N + 1]int
	genpoly [ParityLen + 1]int

	// dual -> conventional and conventional -> dual symbol maps
	tal1tab [256]byte
	taltab  [256]byte
}

var defaultEncoder = NewEncoder()

// Default returns the shared CCSDS encoder.
func Default() *Encoder {
	return defaultEncoder
}

// NewEncoder builds the field, generator polynomial and dual basis tables.
func NewEncoder() *Encoder {
	e := &Encoder{}

	e.indexOf[0] = a0
	e.alphaTo[a0] = 0
	sr := 1
	for i := 0; i < N; i++ {
		e.indexOf[sr] = i
		e.alphaTo[i] = byte(sr)
		sr <<= 1
		if sr&0x100 != 0 {
			sr ^= fieldPoly
		}
		sr &= N
	}

	var g [ParityLen + 1]int
	g[0] = 1
	root := firstRoot * primElem
	for i := 0; i < ParityLen; i++ {
		g[i+1] = 1
		for j := i; j > 0; j-- {
			if g[j] != 0 {
				g[j] = g[j-1] ^ int(e.alphaTo[modnn(e.indexOf[g[j]]+root)])
			} else {
				g[j] = g[j-1]
			}
		}
		g[0] = int(e.alphaTo[modnn(e.indexOf[g[0]]+root)])
		root += primElem
	}
	for i := range g {
		e.genpoly[i] = e.indexOf[g[i]]
	}

	for i := 0; i < 256; i++ {
		var t byte
		for k := 0; k < 8; k++ {
			if i&(1<<k) != 0 {
				t ^= tal[7-k]
			}
		}
		e.taltab[i] = t
		e.tal1tab[t] = byte(i)
	}
	return e
}

// Encode returns the 32 parity symbols for a 223-symbol message block. Both
// the block and the parity are in dual basis representation.
func (e *Encoder) Encode(data [K]byte) [ParityLen]byte {
	var parity [ParityLen]byte
	for i := 0; i < K; i++ {
		feedback := e.indexOf[e.tal1tab[data[i]]^parity[0]]
		if feedback != a0 {
			for j := 1; j < ParityLen; j++ {
				parity[j] ^= e.alphaTo[modnn(feedback+e.genpoly[ParityLen-j])]
			}
		}
		copy(parity[:], parity[1:])
		if feedback != a0 {
			parity[ParityLen-1] = e.alphaTo[modnn(feedback+e.genpoly[0])]
		} else {
			parity[ParityLen-1] = 0
		}
	}
	for i := range parity {
		parity[i] = e.taltab[parity[i]]
	}
	return parity
}

func modnn(x int) int {
	for x >= N {
		x -= N
		x = (x >> 8) + (x & N)
	}
	return x
}
