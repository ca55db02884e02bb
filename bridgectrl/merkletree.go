package bridgectrl

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

// MerkleTree is an append-only binary tree over an ordered leaf sequence.
// Sibling pairs are sorted before hashing and an odd node at the end of a layer
// is promoted to the next layer unchanged. It is not safe for concurrent use.
type MerkleTree struct {
	// layers[0] holds the leaves, the last layer holds the root
	layers [][]common.Hash
	// index maps a leaf to its position
	index map[common.Hash]uint64
	// roots maps every root the tree has had to the number of leaves it covered
	roots map[common.Hash]uint64
}

// NewMerkleTree creates a tree holding the given leaves in order. Duplicated leaves are skipped.
func NewMerkleTree(leaves []common.Hash) *MerkleTree {
	mt := &MerkleTree{
		index: make(map[common.Hash]uint64, len(leaves)),
		roots: make(map[common.Hash]uint64, len(leaves)),
	}
	for _, leaf := range leaves {
		mt.addLeaf(leaf)
	}
	return mt
}

// Len returns the number of leaves
func (mt *MerkleTree) Len() uint64 {
	if len(mt.layers) == 0 {
		return 0
	}
	return uint64(len(mt.layers[0]))
}

// Root returns the current root, ZeroRoot when the tree is empty
func (mt *MerkleTree) Root() common.Hash {
	if len(mt.layers) == 0 {
		return ZeroRoot
	}
	return mt.layers[len(mt.layers)-1][0]
}

// Leaves returns a copy of the leaf sequence
func (mt *MerkleTree) Leaves() []common.Hash {
	if len(mt.layers) == 0 {
		return nil
	}
	return append([]common.Hash(nil), mt.layers[0]...)
}

// IndexOf returns the position of a leaf
func (mt *MerkleTree) IndexOf(leaf common.Hash) (uint64, bool) {
	i, ok := mt.index[leaf]
	return i, ok
}

// SizeOfRoot returns how many leaves the given root covered
func (mt *MerkleTree) SizeOfRoot(root common.Hash) (uint64, bool) {
	size, ok := mt.roots[root]
	return size, ok
}

// Insert appends the leaf if it is absent and returns the current root and the leaf's proof.
// inserted is false when the leaf was already present.
func (mt *MerkleTree) Insert(leaf common.Hash) (root common.Hash, proof []common.Hash, index uint64, inserted bool) {
	index, found := mt.index[leaf]
	if !found {
		index = mt.addLeaf(leaf)
	}
	return mt.Root(), mt.proof(index), index, !found
}

// ProofFor returns the proof of a leaf against the current root
func (mt *MerkleTree) ProofFor(leaf common.Hash) ([]common.Hash, error) {
	index, found := mt.index[leaf]
	if !found {
		return nil, gerror.ErrLeafNotFound
	}
	return mt.proof(index), nil
}

// RootAt returns the root the tree had when it held the first size leaves
func (mt *MerkleTree) RootAt(size uint64) (common.Hash, error) {
	if size > mt.Len() {
		return common.Hash{}, gerror.ErrLeafNotFound
	}
	if size == 0 {
		return ZeroRoot, nil
	}
	root, _ := mt.nodeAt(heightOf(size), 0, size)
	return root, nil
}

// ProofAt returns the proof of the leaf at index against the root of the first size leaves
func (mt *MerkleTree) ProofAt(index, size uint64) ([]common.Hash, error) {
	if size > mt.Len() || index >= size {
		return nil, gerror.ErrLeafNotFound
	}
	if size == mt.Len() {
		return mt.proof(index), nil
	}
	var proof []common.Hash
	for h := uint8(0); h < heightOf(size); h++ {
		sibling := (index >> h) ^ 1
		if node, ok := mt.nodeAt(h, sibling, size); ok {
			proof = append(proof, node)
		}
	}
	return proof, nil
}

// VerifyProof checks that the proof links the leaf to the root
func VerifyProof(leaf common.Hash, proof []common.Hash, root common.Hash) bool {
	cur := leaf
	for _, sibling := range proof {
		cur = hashPair(cur, sibling)
	}
	return cur == root
}

func (mt *MerkleTree) addLeaf(leaf common.Hash) uint64 {
	if i, found := mt.index[leaf]; found {
		return i
	}
	if len(mt.layers) == 0 {
		mt.layers = append(mt.layers, nil)
	}
	mt.layers[0] = append(mt.layers[0], leaf)
	index := uint64(len(mt.layers[0]) - 1)
	mt.index[leaf] = index

	// Only the right edge of every layer changes
	for h := 0; len(mt.layers[h]) > 1; h++ {
		pos := len(mt.layers[h]) - 1
		parent := mt.layers[h][pos]
		if pos%2 == 1 {
			parent = hashPair(mt.layers[h][pos-1], mt.layers[h][pos])
		}
		if h+1 == len(mt.layers) {
			mt.layers = append(mt.layers, nil)
		}
		if pp := pos / 2; pp < len(mt.layers[h+1]) {
			mt.layers[h+1][pp] = parent
		} else {
			mt.layers[h+1] = append(mt.layers[h+1], parent)
		}
	}
	if _, seen := mt.roots[mt.Root()]; !seen {
		mt.roots[mt.Root()] = mt.Len()
	}
	return index
}

func (mt *MerkleTree) proof(index uint64) []common.Hash {
	var proof []common.Hash
	for h := 0; h < len(mt.layers)-1; h++ {
		sibling := (index >> uint(h)) ^ 1
		if sibling < uint64(len(mt.layers[h])) {
			proof = append(proof, mt.layers[h][sibling])
		}
	}
	return proof
}

// nodeAt returns the node at height h and position pos of the tree built over the first size leaves
func (mt *MerkleTree) nodeAt(h uint8, pos, size uint64) (common.Hash, bool) {
	start := pos << h
	if start >= size {
		return common.Hash{}, false
	}
	if start+(1<<h) <= size {
		// Complete subtrees never change once built
		return mt.layers[h][pos], true
	}
	left, _ := mt.nodeAt(h-1, pos*2, size) //nolint:gomnd
	right, ok := mt.nodeAt(h-1, pos*2+1, size)
	if !ok {
		return left, true
	}
	return hashPair(left, right), true
}

// heightOf returns the number of layers above the leaves for a tree of size leaves
func heightOf(size uint64) uint8 {
	var h uint8
	for n := size; n > 1; n = (n + 1) / 2 {
		h++
	}
	return h
}
