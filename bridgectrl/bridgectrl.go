package bridgectrl

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

const (
	// KeyLen is the length of key and value in the Merkle Tree
	KeyLen = 32

	defaultQueueSize = 256
)

// InsertResult is the accumulator state observed right after an insert
type InsertResult struct {
	Leaf     common.Hash
	Root     common.Hash
	Proof    []common.Hash
	Index    uint64
	Size     uint64
	Inserted bool
}

type insertRequest struct {
	ctx        context.Context
	leaf       common.Hash
	transferID common.Hash
	reply      chan insertReply
}

type insertReply struct {
	result *InsertResult
	err    error
}

// accumulator owns the tree of one direction. All inserts are applied by a single goroutine.
type accumulator struct {
	direction etherman.Direction
	store     leafStore
	queue     chan insertRequest

	mu   sync.RWMutex
	tree *MerkleTree

	// fatalf is called when a freshly derived proof does not verify
	fatalf func(format string, args ...interface{})
}

// BridgeController holds one accumulator per direction
type BridgeController struct {
	codec        *LeafCodec
	accumulators map[etherman.Direction]*accumulator
}

// NewBridgeController replays the persisted leaves of both directions and starts their writers.
// When the store can lock the accumulators, the controller refuses to start while another
// process owns them. The writers stop and the ownership is released when ctx is done.
func NewBridgeController(ctx context.Context, cfg Config, store interface{}) (*BridgeController, error) {
	codec, err := NewLeafCodec(cfg.LeafHashRounds)
	if err != nil {
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	var release func()
	if owner, ok := store.(accumulatorOwner); ok {
		if release, err = owner.AcquireAccumulatorLock(ctx); err != nil {
			return nil, fmt.Errorf("failed to own the accumulators: %w", err)
		}
	}
	bt, err := restoreController(ctx, codec, queueSize, store.(leafStore))
	if err != nil {
		if release != nil {
			release()
		}
		return nil, err
	}
	if release != nil {
		go func() {
			<-ctx.Done()
			release()
			log.Info("accumulator ownership released")
		}()
	}
	return bt, nil
}

func restoreController(ctx context.Context, codec *LeafCodec, queueSize int, leafStore leafStore) (*BridgeController, error) {
	bt := &BridgeController{
		codec:        codec,
		accumulators: make(map[etherman.Direction]*accumulator, len(etherman.Directions)),
	}
	for _, d := range etherman.Directions {
		leaves, err := leafStore.GetLeaves(ctx, d, nil)
		if err != nil && err != gerror.ErrStorageNotFound {
			return nil, fmt.Errorf("failed to load %s leaves: %w", d, err)
		}
		acc := &accumulator{
			direction: d,
			store:     leafStore,
			queue:     make(chan insertRequest, queueSize),
			tree:      NewMerkleTree(leaves),
			fatalf:    log.Fatalf,
		}
		if acc.tree.Len() != uint64(len(leaves)) {
			return nil, fmt.Errorf("persisted %s leaves contain duplicates: %d stored, %d distinct", d, len(leaves), acc.tree.Len())
		}
		log.Infof("accumulator %s restored with %d leaves, root %s", d, acc.tree.Len(), acc.tree.Root().String())
		bt.accumulators[d] = acc
	}
	for _, acc := range bt.accumulators {
		go acc.run(ctx)
	}
	return bt, nil
}

// EncodeLeaf computes the leaf of a transfer record
func (bt *BridgeController) EncodeLeaf(record *etherman.TransferRecord) (common.Hash, error) {
	return bt.codec.Encode(record)
}

// Insert queues the leaf on its direction's writer and waits for the result.
// The returned root already includes the leaf.
func (bt *BridgeController) Insert(ctx context.Context, direction etherman.Direction, leaf, transferID common.Hash) (*InsertResult, error) {
	acc, err := bt.get(direction)
	if err != nil {
		return nil, err
	}
	req := insertRequest{ctx: ctx, leaf: leaf, transferID: transferID, reply: make(chan insertReply, 1)}
	select {
	case acc.queue <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Root returns the current root of a direction
func (bt *BridgeController) Root(direction etherman.Direction) (common.Hash, error) {
	acc, err := bt.get(direction)
	if err != nil {
		return common.Hash{}, err
	}
	acc.mu.RLock()
	defer acc.mu.RUnlock()
	return acc.tree.Root(), nil
}

// Len returns the number of leaves of a direction
func (bt *BridgeController) Len(direction etherman.Direction) (uint64, error) {
	acc, err := bt.get(direction)
	if err != nil {
		return 0, err
	}
	acc.mu.RLock()
	defer acc.mu.RUnlock()
	return acc.tree.Len(), nil
}

// ProofFor returns the proof of a leaf against the current root of its direction
func (bt *BridgeController) ProofFor(direction etherman.Direction, leaf common.Hash) (common.Hash, []common.Hash, error) {
	acc, err := bt.get(direction)
	if err != nil {
		return common.Hash{}, nil, err
	}
	acc.mu.RLock()
	defer acc.mu.RUnlock()
	proof, err := acc.tree.ProofFor(leaf)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return acc.tree.Root(), proof, nil
}

// ProofAgainst returns the proof of a leaf against a root the direction has had.
// ok is false when the root is unknown or does not cover the leaf yet.
func (bt *BridgeController) ProofAgainst(direction etherman.Direction, leaf, root common.Hash) (proof []common.Hash, ok bool, err error) {
	acc, err := bt.get(direction)
	if err != nil {
		return nil, false, err
	}
	acc.mu.RLock()
	defer acc.mu.RUnlock()
	index, found := acc.tree.IndexOf(leaf)
	if !found {
		return nil, false, gerror.ErrLeafNotFound
	}
	size, known := acc.tree.SizeOfRoot(root)
	if !known || size <= index {
		return nil, false, nil
	}
	proof, err = acc.tree.ProofAt(index, size)
	if err != nil {
		return nil, false, err
	}
	return proof, true, nil
}

// Covers reports whether root is a root of the direction that already includes the leaf
func (bt *BridgeController) Covers(direction etherman.Direction, leaf, root common.Hash) (bool, error) {
	_, ok, err := bt.ProofAgainst(direction, leaf, root)
	return ok, err
}

func (bt *BridgeController) get(direction etherman.Direction) (*accumulator, error) {
	acc, found := bt.accumulators[direction]
	if !found {
		return nil, gerror.ErrUnknownDirection
	}
	return acc, nil
}

func (a *accumulator) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Infof("accumulator %s stopped", a.direction)
			return
		case req := <-a.queue:
			result, err := a.insert(req)
			req.reply <- insertReply{result: result, err: err}
		}
	}
}

func (a *accumulator) insert(req insertRequest) (*InsertResult, error) {
	a.mu.RLock()
	_, found := a.tree.IndexOf(req.leaf)
	size := a.tree.Len()
	a.mu.RUnlock()

	if !found {
		// The leaf is durable before it can be part of any root handed out
		if err := a.store.AddLeaf(req.ctx, a.direction, size, req.leaf, req.transferID, nil); err != nil {
			return nil, fmt.Errorf("failed to persist %s leaf %s: %w", a.direction, req.leaf.String(), err)
		}
	}

	a.mu.Lock()
	root, proof, index, inserted := a.tree.Insert(req.leaf)
	size = a.tree.Len()
	a.mu.Unlock()

	if !VerifyProof(req.leaf, proof, root) {
		a.fatalf("%v: direction %s leaf %s index %d root %s", gerror.ErrAccumulatorRace, a.direction, req.leaf.String(), index, root.String())
		return nil, gerror.ErrAccumulatorRace
	}
	log.Debugf("accumulator %s: leaf %s at index %d inserted=%t root %s", a.direction, req.leaf.String(), index, inserted, root.String())
	return &InsertResult{
		Leaf:     req.leaf,
		Root:     root,
		Proof:    proof,
		Index:    index,
		Size:     size,
		Inserted: inserted,
	}, nil
}
