// Package merkle builds the membership trees that anonymous reaction
// proofs are verified against. Leaves are member commitments; the root is
// persisted per feed every time the commitment set changes.
package merkle

import (
	"bytes"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ErrLeafNotFound is returned when a proof is requested for a leaf that is
// not in the tree.
var ErrLeafNotFound = errors.New("leaf not in tree")

// EmptyRoot is the root of a tree with no leaves.
func EmptyRoot() []byte {
	return crypto.Keccak256()
}

// BuildRoot computes the root over the given leaves. Leaves pair up level
// by level; an odd node is hashed with itself. Leaf order is significant
// and callers must feed a deterministic order.
func BuildRoot(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		return EmptyRoot()
	}
	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		level[i] = crypto.Keccak256(leaf)
	}
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0]
}

// ProofStep is one sibling hash on the path from leaf to root.
type ProofStep struct {
	Hash []byte `json:"hash"`
	// Left is set when the sibling sits to the left of the running hash.
	Left bool `json:"left"`
}

// Prove returns the membership path of one leaf.
func Prove(leaves [][]byte, leaf []byte) ([]ProofStep, error) {
	index := -1
	for i, l := range leaves {
		if bytes.Equal(l, leaf) {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrLeafNotFound
	}

	level := make([][]byte, len(leaves))
	for i, l := range leaves {
		level[i] = crypto.Keccak256(l)
	}
	var path []ProofStep
	for len(level) > 1 {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index
		}
		path = append(path, ProofStep{
			Hash: level[sibling],
			Left: sibling < index,
		})
		level = nextLevel(level)
		index /= 2
	}
	return path, nil
}

// VerifyProof checks a membership path against a root.
func VerifyProof(root, leaf []byte, path []ProofStep) bool {
	hash := crypto.Keccak256(leaf)
	for _, step := range path {
		if step.Left {
			hash = crypto.Keccak256(step.Hash, hash)
		} else {
			hash = crypto.Keccak256(hash, step.Hash)
		}
	}
	return bytes.Equal(hash, root)
}

func nextLevel(level [][]byte) [][]byte {
	next := make([][]byte, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if i+1 < len(level) {
			next = append(next, crypto.Keccak256(level[i], level[i+1]))
		} else {
			next = append(next, crypto.Keccak256(level[i], level[i]))
		}
	}
	return next
}
