// Package rescue implements the commitment hash used to bind a run to its
// input and output states: a Rescue-family permutation over the 64-bit
// goldilocks field (2^64 - 2^32 + 1), the same prime field the VM computes
// in. The host-side accumulator here mirrors, word for word, the traversal
// the code generator emits with the VM's native merge instruction.
package rescue

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/field/goldilocks"
)

const (
	// Width is the permutation state size in field elements.
	Width = 12
	// Rate is the number of state elements a single merge absorbs.
	Rate = 8
	// DigestLen is the digest size in field elements.
	DigestLen = 4
	// Rounds is the number of full Rescue rounds.
	Rounds = 7

	// alpha is the S-box exponent; invAlpha is its inverse mod p-1.
	alpha    = 7
	invAlpha = 10540996611094048183
)

// Digest is a 4-element commitment digest.
type Digest [DigestLen]uint64

// mdsRow is the first row of the circulant MDS matrix.
var mdsRow = [Width]uint64{7, 23, 8, 26, 13, 10, 9, 7, 6, 22, 21, 8}

var (
	mds  [Width][Width]goldilocks.Element
	ark1 [Rounds][Width]goldilocks.Element
	ark2 [Rounds][Width]goldilocks.Element

	invAlphaBig = new(big.Int).SetUint64(invAlpha)
)

func init() {
	for i := 0; i < Width; i++ {
		for j := 0; j < Width; j++ {
			mds[i][j].SetUint64(mdsRow[(j-i+Width)%Width])
		}
	}
	// Round constants are derived from a fixed seed so that the permutation
	// is fully determined by this source file.
	for r := 0; r < Rounds; r++ {
		for i := 0; i < Width; i++ {
			ark1[r][i] = derivedConstant(1, r, i)
			ark2[r][i] = derivedConstant(2, r, i)
		}
	}
}

func derivedConstant(set, round, idx int) goldilocks.Element {
	seed := fmt.Sprintf("rescue-goldilocks-%d-%d/ark%d/%d/%d", Width, Rounds, set, round, idx)
	sum := sha256.Sum256([]byte(seed))
	var e goldilocks.Element
	e.SetBigInt(new(big.Int).SetBytes(sum[:16]))
	return e
}

type state [Width]goldilocks.Element

func (s *state) applyMDS() {
	var out state
	for i := 0; i < Width; i++ {
		var acc, tmp goldilocks.Element
		for j := 0; j < Width; j++ {
			tmp.Mul(&mds[i][j], &s[j])
			acc.Add(&acc, &tmp)
		}
		out[i] = acc
	}
	*s = out
}

func (s *state) addConstants(ark *[Width]goldilocks.Element) {
	for i := 0; i < Width; i++ {
		s[i].Add(&s[i], &ark[i])
	}
}

func (s *state) sbox() {
	for i := 0; i < Width; i++ {
		var x2, x4, x6 goldilocks.Element
		x2.Square(&s[i])
		x4.Square(&x2)
		x6.Mul(&x2, &x4)
		s[i].Mul(&x6, &s[i])
	}
}

func (s *state) invSbox() {
	for i := 0; i < Width; i++ {
		s[i].Exp(s[i], invAlphaBig)
	}
}

// permute runs the full permutation in place.
func (s *state) permute() {
	for r := 0; r < Rounds; r++ {
		s.applyMDS()
		s.addConstants(&ark1[r])
		s.sbox()
		s.applyMDS()
		s.addConstants(&ark2[r])
		s.invSbox()
	}
}

func (s *state) setRate(a, b Digest) {
	for i := 0; i < DigestLen; i++ {
		s[DigestLen+i].SetUint64(a[i])
		s[2*DigestLen+i].SetUint64(b[i])
	}
}

func (s *state) digest() Digest {
	var d Digest
	var tmp big.Int
	for i := 0; i < DigestLen; i++ {
		d[i] = s[DigestLen+i].BigInt(&tmp).Uint64()
	}
	return d
}

// Merge compresses two digests into one, the host-side twin of the VM's
// merge instruction.
func Merge(a, b Digest) Digest {
	var s state
	s.setRate(a, b)
	s.permute()
	return s.digest()
}
