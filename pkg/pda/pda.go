// Package pda implements Program Derived Address computation.
//
// A PDA is a deterministic account address derived from a seed tuple and a
// program ID. Derived addresses are guaranteed to fall off the Ed25519
// curve, so no keypair can ever sign for them; this is what lets the sale
// engine bind configuration and buyer records to canonical addresses that
// an adversary cannot pre-generate a colliding signer for.
package pda

import (
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/fortiblox/x1-tokensale/internal/types"
)

// Derivation constants.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

// PDA marker appended to the hash input during derivation.
var pdaMarker = []byte("ProgramDerivedAddress")

// Derivation errors.
var (
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrMaxSeedsExceeded      = errors.New("max seeds exceeded")
	ErrInvalidSeeds          = errors.New("invalid seeds: derived address is on curve")
	ErrNoViableBump          = errors.New("unable to find a viable bump seed")
)

// CreateProgramAddress derives a program address from seeds and a program ID.
// Returns ErrInvalidSeeds if the derived address lands on the Ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.Pubkey{}, ErrMaxSeedsExceeded
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.Pubkey{}, ErrMaxSeedLengthExceeded
		}
	}

	// Hash input: seeds + programID + marker.
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write(pdaMarker)

	var addr types.Pubkey
	copy(addr[:], h.Sum(nil))

	if isOnCurve(addr[:]) {
		return types.Pubkey{}, ErrInvalidSeeds
	}

	return addr, nil
}

// FindProgramAddress finds a valid PDA by iterating bump seeds from 255
// down to 0. The first bump producing an off-curve address is canonical.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seeds) > MaxSeeds-1 { // Need room for the bump seed.
		return types.Pubkey{}, 0, ErrMaxSeedsExceeded
	}

	for bump := uint8(255); ; bump-- {
		seedsWithBump := make([][]byte, len(seeds)+1)
		copy(seedsWithBump, seeds)
		seedsWithBump[len(seeds)] = []byte{bump}

		addr, err := CreateProgramAddress(seedsWithBump, programID)
		if err == nil {
			return addr, bump, nil
		}

		if bump == 0 {
			break
		}
	}

	return types.Pubkey{}, 0, ErrNoViableBump
}

// VerifyProgramAddress reports whether claimed is the canonical PDA for the
// given seeds. Only the canonical bump returned by FindProgramAddress is
// accepted; this is the primary defense against account substitution.
func VerifyProgramAddress(claimed types.Pubkey, seeds [][]byte, programID types.Pubkey) bool {
	addr, _, err := FindProgramAddress(seeds, programID)
	if err != nil {
		return false
	}
	return addr == claimed
}

// isOnCurve checks if the given bytes represent a point on the Ed25519 curve.
//
// Ed25519 uses the twisted Edwards curve -x^2 + y^2 = 1 + d*x^2*y^2 with
// d = -121665/121666 (mod p) and p = 2^255 - 19. A compressed point stores
// the y-coordinate plus the sign of x; the point is on the curve iff the
// x^2 recovered from the curve equation has a square root in the field.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}

	// Field prime p = 2^255 - 19.
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))

	// Curve parameter d = -121665 * inverse(121666) mod p.
	d := new(big.Int).Mul(big.NewInt(-121665), new(big.Int).ModInverse(big.NewInt(121666), p))
	d.Mod(d, p)

	// Extract y-coordinate (little-endian, clear the x-sign bit).
	yBytes := make([]byte, 32)
	copy(yBytes, point)
	yBytes[31] &= 0x7F

	y := new(big.Int)
	for i := 31; i >= 0; i-- {
		y.Lsh(y, 8)
		y.Or(y, big.NewInt(int64(yBytes[i])))
	}

	// y must be in [0, p).
	if y.Cmp(p) >= 0 {
		return false
	}

	// x^2 = (y^2 - 1) / (d*y^2 + 1) from the curve equation.
	y2 := new(big.Int).Mul(y, y)
	y2.Mod(y2, p)

	num := new(big.Int).Sub(y2, big.NewInt(1))
	num.Mod(num, p)

	den := new(big.Int).Mul(d, y2)
	den.Add(den, big.NewInt(1))
	den.Mod(den, p)

	denInv := new(big.Int).ModInverse(den, p)
	if denInv == nil {
		return false
	}
	x2 := new(big.Int).Mul(num, denInv)
	x2.Mod(x2, p)

	// Euler's criterion: x^2 is a quadratic residue iff x^2^((p-1)/2) = 1.
	exp := new(big.Int).Sub(p, big.NewInt(1))
	exp.Rsh(exp, 1)

	legendre := new(big.Int).Exp(x2, exp, p)

	return legendre.Cmp(big.NewInt(1)) == 0 || x2.Sign() == 0
}
