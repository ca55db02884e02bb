package bridgectrl

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/utils/gerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memLeafStore struct {
	mu     sync.Mutex
	leaves map[etherman.Direction][]common.Hash
}

func newMemLeafStore() *memLeafStore {
	return &memLeafStore{leaves: make(map[etherman.Direction][]common.Hash)}
}

func (s *memLeafStore) AddLeaf(_ context.Context, direction etherman.Direction, index uint64, leaf, _ common.Hash, _ pgx.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(len(s.leaves[direction])) != index {
		return errors.New("out of order leaf")
	}
	s.leaves[direction] = append(s.leaves[direction], leaf)
	return nil
}

func (s *memLeafStore) GetLeaves(_ context.Context, direction etherman.Direction, _ pgx.Tx) ([]common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.Hash(nil), s.leaves[direction]...), nil
}

// ownedLeafStore shares one set of leaves between controllers and lets one of them own it at a time
type ownedLeafStore struct {
	*memLeafStore
	owned *int32
}

func (s *ownedLeafStore) AcquireAccumulatorLock(context.Context) (func(), error) {
	if !atomic.CompareAndSwapInt32(s.owned, 0, 1) {
		return nil, gerror.ErrAccumulatorOwned
	}
	return func() { atomic.StoreInt32(s.owned, 0) }, nil
}

type leafStoreMock struct {
	mock.Mock
}

func (m *leafStoreMock) AddLeaf(ctx context.Context, direction etherman.Direction, index uint64, leaf, transferID common.Hash, dbTx pgx.Tx) error {
	args := m.Called(ctx, direction, index, leaf, transferID, dbTx)
	return args.Error(0)
}

func (m *leafStoreMock) GetLeaves(ctx context.Context, direction etherman.Direction, dbTx pgx.Tx) ([]common.Hash, error) {
	args := m.Called(ctx, direction, dbTx)
	leaves, _ := args.Get(0).([]common.Hash)
	return leaves, args.Error(1)
}

func newTestController(t *testing.T, store interface{}) *BridgeController {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	bt, err := NewBridgeController(ctx, Config{LeafHashRounds: 2}, store)
	require.NoError(t, err)
	return bt
}

func TestBridgeControllerInsert(t *testing.T) {
	store := newMemLeafStore()
	bt := newTestController(t, store)
	ctx := context.Background()

	leaf, err := bt.EncodeLeaf(testRecord(etherman.DirectionLock))
	require.NoError(t, err)
	res, err := bt.Insert(ctx, etherman.DirectionLock, leaf, common.Hash{})
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.Equal(t, leaf, res.Root)
	assert.Equal(t, uint64(1), res.Size)

	// Duplicate ingestion observes the existing leaf
	again, err := bt.Insert(ctx, etherman.DirectionLock, leaf, common.Hash{})
	require.NoError(t, err)
	assert.False(t, again.Inserted)
	assert.Equal(t, res.Root, again.Root)

	n, err := bt.Len(etherman.DirectionLock)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	n, err = bt.Len(etherman.DirectionBurn)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
	root, err := bt.Root(etherman.DirectionBurn)
	require.NoError(t, err)
	assert.Equal(t, ZeroRoot, root)
	assert.Len(t, store.leaves[etherman.DirectionLock], 1)

	_, err = bt.Insert(ctx, "sideways", leaf, common.Hash{})
	assert.Equal(t, gerror.ErrUnknownDirection, err)
}

func TestBridgeControllerConcurrentInserts(t *testing.T) {
	store := newMemLeafStore()
	bt := newTestController(t, store)
	ctx := context.Background()
	leaves := testLeaves(64)

	var wg sync.WaitGroup
	results := make([]*InsertResult, len(leaves))
	for i := range leaves {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := bt.Insert(ctx, etherman.DirectionBurn, leaves[i], common.Hash{})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	n, err := bt.Len(etherman.DirectionBurn)
	require.NoError(t, err)
	require.Equal(t, uint64(len(leaves)), n)
	for i, res := range results {
		require.NotNil(t, res)
		// Each root handed out already includes the caller's own leaf
		assert.True(t, VerifyProof(leaves[i], res.Proof, res.Root))
		covered, err := bt.Covers(etherman.DirectionBurn, leaves[i], res.Root)
		require.NoError(t, err)
		assert.True(t, covered)
	}

	// The stored sequence is the tree's sequence
	persisted := store.leaves[etherman.DirectionBurn]
	assert.Equal(t, fullRoot(persisted), mustRoot(t, bt, etherman.DirectionBurn))
}

func mustRoot(t *testing.T, bt *BridgeController, d etherman.Direction) common.Hash {
	root, err := bt.Root(d)
	require.NoError(t, err)
	return root
}

func TestBridgeControllerReplay(t *testing.T) {
	store := newMemLeafStore()
	leaves := testLeaves(5)
	for i, leaf := range leaves {
		require.NoError(t, store.AddLeaf(context.Background(), etherman.DirectionLock, uint64(i), leaf, common.Hash{}, nil))
	}
	bt := newTestController(t, store)
	assert.Equal(t, fullRoot(leaves), mustRoot(t, bt, etherman.DirectionLock))

	root, proof, err := bt.ProofFor(etherman.DirectionLock, leaves[3])
	require.NoError(t, err)
	assert.True(t, VerifyProof(leaves[3], proof, root))

	// A root covering only the first three leaves cannot prove the fourth
	old := fullRoot(leaves[:3])
	_, ok, err := bt.ProofAgainst(etherman.DirectionLock, leaves[3], old)
	require.NoError(t, err)
	assert.False(t, ok)
	proof, ok, err = bt.ProofAgainst(etherman.DirectionLock, leaves[1], old)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, VerifyProof(leaves[1], proof, old))
}

func TestBridgeControllerStoreFailure(t *testing.T) {
	m := new(leafStoreMock)
	m.On("GetLeaves", mock.Anything, etherman.DirectionLock, nil).Return(nil, gerror.ErrStorageNotFound).Once()
	m.On("GetLeaves", mock.Anything, etherman.DirectionBurn, nil).Return([]common.Hash{}, nil).Once()
	bt := newTestController(t, m)

	leaf := testLeaves(1)[0]
	m.On("AddLeaf", mock.Anything, etherman.DirectionLock, uint64(0), leaf, common.Hash{}, nil).Return(errors.New("db down")).Once()
	_, err := bt.Insert(context.Background(), etherman.DirectionLock, leaf, common.Hash{})
	require.Error(t, err)

	// Nothing was applied in memory
	n, err := bt.Len(etherman.DirectionLock)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
	m.AssertExpectations(t)
}

func TestBridgeControllerSingleOwner(t *testing.T) {
	store := &ownedLeafStore{memLeafStore: newMemLeafStore(), owned: new(int32)}
	ctx, cancel := context.WithCancel(context.Background())
	first, err := NewBridgeController(ctx, Config{LeafHashRounds: 2}, store)
	require.NoError(t, err)
	leaf := testLeaves(1)[0]
	_, err = first.Insert(ctx, etherman.DirectionLock, leaf, common.Hash{})
	require.NoError(t, err)

	// a second process over the same database is refused instead of writing a stale index
	_, err = NewBridgeController(context.Background(), Config{LeafHashRounds: 2}, store)
	assert.ErrorIs(t, err, gerror.ErrAccumulatorOwned)

	cancel()
	var second *BridgeController
	require.Eventually(t, func() bool {
		second, err = NewBridgeController(context.Background(), Config{LeafHashRounds: 2}, store)
		return err == nil
	}, time.Second, 10*time.Millisecond)
	n, err := second.Len(etherman.DirectionLock)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestBridgeControllerReleasesOwnershipOnFailure(t *testing.T) {
	store := &ownedLeafStore{memLeafStore: newMemLeafStore(), owned: new(int32)}
	store.leaves[etherman.DirectionBurn] = []common.Hash{testLeaves(1)[0], testLeaves(1)[0]}
	_, err := NewBridgeController(context.Background(), Config{LeafHashRounds: 2}, store)
	require.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(store.owned))
}
