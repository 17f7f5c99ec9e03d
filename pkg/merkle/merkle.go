// Package merkle implements the whitelist membership proof primitives.
//
// A whitelist is summarized on-chain as a single 32-byte Merkle root stored
// in the sale configuration. A buyer proves membership by supplying an
// ordered path of (sibling hash, side) pairs; the verifier folds the path
// from the buyer's leaf and compares the result against the stored root.
//
// Verification is fail-closed: a proof that is misordered, truncated, or
// built for another tree simply folds to the wrong hash and yields false.
package merkle

import (
	"crypto/sha256"

	"github.com/fortiblox/x1-tokensale/internal/types"
)

// Side indicates on which side of the current hash a proof sibling sits.
type Side uint8

// Proof sibling positions.
const (
	SideLeft  Side = 0
	SideRight Side = 1
)

// ProofNode is a single step of a membership proof: the sibling hash and
// the side the sibling occupies at that level.
type ProofNode struct {
	Data types.Hash
	Side Side
}

// Proof is an ordered leaf-to-root path of proof nodes.
type Proof []ProofNode

// PubkeyLeaf converts a pubkey into its whitelist leaf.
//
// The pubkey is hashed once rather than used directly so that holders of
// the root and a proof cannot enumerate the whitelisted identities.
func PubkeyLeaf(pubkey types.Pubkey) types.Hash {
	return sha256.Sum256(pubkey[:])
}

// EmptyRoot returns the root of a whitelist with no members.
//
// Defined as the hash of empty input. No single-leaf fold can reach it,
// so "nobody is whitelisted" is representable and distinct from any
// populated tree.
func EmptyRoot() types.Hash {
	return sha256.Sum256(nil)
}

// VerifyMembership folds proof over leaf and reports whether the result
// equals root.
//
// At each step the accumulated hash is combined with the sibling:
// sibling on the right hashes current||sibling, sibling on the left hashes
// sibling||current. Order is structurally meaningful and caller supplied;
// no sorting or deduplication is performed.
func VerifyMembership(root types.Hash, proof Proof, leaf types.Hash) bool {
	current := leaf
	for _, node := range proof {
		current = combine(current, node)
	}
	return current == root
}

func combine(current types.Hash, node ProofNode) types.Hash {
	h := sha256.New()
	if node.Side == SideRight {
		h.Write(current[:])
		h.Write(node.Data[:])
	} else {
		h.Write(node.Data[:])
		h.Write(current[:])
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
