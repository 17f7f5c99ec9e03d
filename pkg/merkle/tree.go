package merkle

import (
	"crypto/sha256"
	"errors"

	"github.com/fortiblox/x1-tokensale/internal/types"
)

// ErrLeafNotFound is returned when proving a leaf absent from the tree.
var ErrLeafNotFound = errors.New("leaf not found in tree")

// Tree is a Merkle tree over a fixed, ordered set of leaves.
//
// The tree exists for the off-chain side of the whitelist: the CLI builds
// one from a list of buyer pubkeys to obtain the root stored in the sale
// configuration and the per-buyer proofs handed out to registrants. The
// on-chain verifier never builds trees, it only folds proofs.
//
// Odd nodes at a level are promoted unchanged to the next level, matching
// the fold performed by VerifyMembership.
type Tree struct {
	levels [][]types.Hash
}

// NewTree builds a tree over the given leaves, preserving order.
func NewTree(leaves []types.Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}

	level := make([]types.Hash, len(leaves))
	copy(level, leaves)

	levels := [][]types.Hash{level}
	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				// Odd node, promote unchanged.
				next = append(next, level[i])
			}
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}
}

// NewTreeFromPubkeys builds a tree over the leaf hashes of the given pubkeys.
func NewTreeFromPubkeys(pubkeys []types.Pubkey) *Tree {
	leaves := make([]types.Hash, len(pubkeys))
	for i, pk := range pubkeys {
		leaves[i] = PubkeyLeaf(pk)
	}
	return NewTree(leaves)
}

// Root returns the tree root, or EmptyRoot for a tree with no leaves.
func (t *Tree) Root() types.Hash {
	if len(t.levels) == 0 {
		return EmptyRoot()
	}
	return t.levels[len(t.levels)-1][0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Prove returns the membership proof for the given leaf.
func (t *Tree) Prove(leaf types.Hash) (Proof, error) {
	if len(t.levels) == 0 {
		return nil, ErrLeafNotFound
	}

	index := -1
	for i, l := range t.levels[0] {
		if l == leaf {
			index = i
			break
		}
	}
	if index == -1 {
		return nil, ErrLeafNotFound
	}

	var proof Proof
	for _, level := range t.levels[:len(t.levels)-1] {
		if index%2 == 0 {
			if index+1 < len(level) {
				proof = append(proof, ProofNode{Data: level[index+1], Side: SideRight})
			}
			// Lone tail node contributes no sibling.
		} else {
			proof = append(proof, ProofNode{Data: level[index-1], Side: SideLeft})
		}
		index /= 2
	}

	return proof, nil
}

// ProvePubkey returns the membership proof for a pubkey's leaf.
func (t *Tree) ProvePubkey(pubkey types.Pubkey) (Proof, error) {
	return t.Prove(PubkeyLeaf(pubkey))
}

func hashPair(left, right types.Hash) types.Hash {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
