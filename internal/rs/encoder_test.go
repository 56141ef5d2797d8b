package rs

import (
	"math/rand"
	"testing"
)

func TestDualBasisTablesAreInverse(t *testing.T) {
	e := NewEncoder()
	for i := 0; i < 256; i++ {
		if got := e.tal1tab[e.taltab[i]]; int(got) != i {
			t.Fatalf("tal1tab[taltab[%d]] = %d", i, got)
		}
	}
}

func TestEncodeZeroBlock(t *testing.T) {
	var block [K]byte
	parity := Default().Encode(block)
	for i, p := range parity {
		if p != 0 {
			t.Fatalf("parity[%d] = 0x%02X, want 0", i, p)
		}
	}
}

func TestEncodeIsLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := Default()
	for trial := 0; trial < 8; trial++ {
		var a, b, sum [K]byte
		rng.Read(a[:])
		rng.Read(b[:])
		for i := range sum {
			sum[i] = a[i] ^ b[i]
		}
		pa, pb, ps := e.Encode(a), e.Encode(b), e.Encode(sum)
		for i := range ps {
			if ps[i] != pa[i]^pb[i] {
				t.Fatalf("trial %d: parity[%d] not linear", trial, i)
			}
		}
	}
}

// Every codeword, converted back to the conventional basis, must vanish at
// each generator root.
func TestCodewordVanishesAtGeneratorRoots(t *testing.T) {
	e := Default()
	rng := rand.New(rand.NewSource(42))
	var block [K]byte
	rng.Read(block[:])
	parity := e.Encode(block)

	codeword := make([]byte, 0, N)
	for _, s := range block {
		codeword = append(codeword, e.tal1tab[s])
	}
	for _, s := range parity {
		codeword = append(codeword, e.tal1tab[s])
	}

	mul := func(a, b byte) byte {
		if a == 0 || b == 0 {
			return 0
		}
		return e.alphaTo[modnn(e.indexOf[a]+e.indexOf[b])]
	}
	for j := 0; j < ParityLen; j++ {
		x := e.alphaTo[modnn((firstRoot+j)*primElem)]
		var acc byte
		for _, c := range codeword {
			acc = mul(acc, x) ^ c
		}
		if acc != 0 {
			t.Fatalf("codeword evaluates to 0x%02X at root %d", acc, j)
		}
	}
}

func TestSingleSymbolChangeAltersParity(t *testing.T) {
	e := Default()
	var block [K]byte
	base := e.Encode(block)
	for _, pos := range []int{0, 1, 111, K - 1} {
		mutated := block
		mutated[pos] = 0x01
		if e.Encode(mutated) == base {
			t.Fatalf("parity unchanged after modifying symbol %d", pos)
		}
	}
}
