package etherman

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/config/types"
	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lockburn/bridge-relayer/utils/gerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Init(log.Config{
		Level:   "debug",
		Outputs: []string{"stdout"},
	})
}

type rpcDataError struct {
	msg  string
	data interface{}
}

func (e *rpcDataError) Error() string          { return e.msg }
func (e *rpcDataError) ErrorData() interface{} { return e.data }

func revertData(t *testing.T, reason string) string {
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	require.NoError(t, err)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return "0x" + common.Bytes2Hex(append(selector, packed...))
}

// fakeBackend is an in-memory node: it records sent transactions and serves receipts on demand
type fakeBackend struct {
	mu          sync.Mutex
	nonce       uint64
	sent        []*ethtypes.Transaction
	receipts    map[common.Hash]*ethtypes.Receipt
	estimateErr error
	callErr     error
	callOut     []byte
	logs        []ethtypes.Log
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{receipts: make(map[common.Hash]*ethtypes.Receipt)}
}

func (b *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callOut, b.callErr
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return 100000, b.estimateErr
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1000000000), nil
}

func (b *fakeBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return b.logs, nil
}

func (b *fakeBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- ethtypes.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(97), nil }

func (b *fakeBackend) BlockNumber(context.Context) (uint64, error) { return 100, nil }

func (b *fakeBackend) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (b *fakeBackend) mine(hash common.Hash, status uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[hash] = &ethtypes.Receipt{TxHash: hash, Status: status, BlockNumber: big.NewInt(101)}
}

func newTestClient(t *testing.T, backend *fakeBackend, timeout time.Duration) *Client {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(97))
	require.NoError(t, err)
	c, err := NewClientWithBackend(ChainB, ChainConfig{
		Name:                "bsc",
		ChainID:             97,
		SettlementAddr:      common.HexToAddress("0xb1"),
		OriginAddr:          common.HexToAddress("0xb2"),
		ConfirmationTimeout: types.Duration{Duration: timeout},
		PollInterval:        types.Duration{Duration: 10 * time.Millisecond},
		ProcessedLookup:     true,
	}, backend, auth)
	require.NoError(t, err)
	return c
}

func TestClassifyRevert(t *testing.T) {
	tests := map[string]RevertKind{
		"NOT_RELAYER": RevertUnauthorized,
		"AccessControl: account 0x12 is missing role": RevertUnauthorized,
		"INVALID_PROOF":          RevertInvalidProof,
		"Invalid merkle proof":   RevertInvalidProof,
		"Merkle root not set":    RevertStaleRoot,
		"ALREADY_PROCESSED":      RevertAlreadyProcessed,
		"Lock already processed": RevertAlreadyProcessed,
		"burn already unlocked":  RevertAlreadyProcessed,
		"out of gas":             RevertUnknown,
	}
	for reason, kind := range tests {
		assert.Equal(t, kind, ClassifyRevert(reason), reason)
	}
}

func TestDecodeRevert(t *testing.T) {
	reason, ok := decodeRevert(&rpcDataError{msg: "execution reverted", data: revertData(t, "INVALID_PROOF")})
	require.True(t, ok)
	assert.Equal(t, "INVALID_PROOF", reason)

	reason, ok = decodeRevert(&rpcDataError{msg: "execution reverted", data: "0x646cf558"})
	require.True(t, ok)
	assert.Equal(t, "custom error 0x646cf558", reason)

	reason, ok = decodeRevert(errors.New("execution reverted: NOT_RELAYER"))
	require.True(t, ok)
	assert.Equal(t, "NOT_RELAYER", reason)

	_, ok = decodeRevert(errors.New("connection refused"))
	assert.False(t, ok)
	_, ok = decodeRevert(nil)
	assert.False(t, ok)
}

func TestSubmitSerializesNonces(t *testing.T) {
	backend := newFakeBackend()
	backend.nonce = 7
	c := newTestClient(t, backend, time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.PublishRoot(ctx, DirectionLock, common.BigToHash(big.NewInt(int64(i+1))), nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, backend.sent, 5)
	seen := make(map[uint64]bool)
	for _, tx := range backend.sent {
		assert.False(t, seen[tx.Nonce()], "nonce %d reused", tx.Nonce())
		seen[tx.Nonce()] = true
		assert.Equal(t, common.HexToAddress("0xb1"), *tx.To())
	}
	for n := uint64(7); n < 12; n++ {
		assert.True(t, seen[n])
	}

	// Explicit nonce replaces with a higher gas price
	replaced, err := c.PublishRoot(ctx, DirectionLock, common.HexToHash("0x01"), &Replacement{Nonce: 7})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), replaced.Nonce)
	assert.Equal(t, big.NewInt(1250000000), replaced.GasPrice)

	// The suggested price fell below the pending tx price, the replacement still outbids it
	replaced, err = c.PublishRoot(ctx, DirectionLock, common.HexToHash("0x01"), &Replacement{Nonce: 8, GasPrice: big.NewInt(3000000000)})
	require.NoError(t, err)
	assert.Equal(t, uint64(8), replaced.Nonce)
	assert.Equal(t, big.NewInt(3300000000), replaced.GasPrice)
	assert.Equal(t, big.NewInt(3300000000), backend.sent[len(backend.sent)-1].GasPrice())
}

func TestReplacementGasPrice(t *testing.T) {
	gwei := func(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(1000000000)) }
	tcs := []struct {
		description string
		suggested   *big.Int
		sent        *big.Int
		expected    *big.Int
	}{
		{"unknown sent price", gwei(8), nil, gwei(10)},
		{"suggested price fell", gwei(10), gwei(20), gwei(22)},
		{"suggested price rose", gwei(50), gwei(20), gwei(50)},
		{"suggested equals bump", gwei(22), gwei(20), gwei(22)},
		{"tiny sent price", big.NewInt(1), big.NewInt(5), big.NewInt(6)},
	}
	for _, tc := range tcs {
		t.Run(tc.description, func(t *testing.T) {
			got := ReplacementGasPrice(tc.suggested, tc.sent)
			assert.Equal(t, tc.expected.String(), got.String())
			if tc.sent != nil {
				assert.True(t, got.Cmp(tc.sent) > 0)
			}
		})
	}
}

func TestSubmitRevertAtEstimation(t *testing.T) {
	backend := newFakeBackend()
	backend.estimateErr = &rpcDataError{msg: "execution reverted", data: revertData(t, "ALREADY_PROCESSED")}
	c := newTestClient(t, backend, time.Second)

	record := &TransferRecord{
		Direction: DirectionLock,
		ID:        common.HexToHash("0xaa"),
		Amount:    big.NewInt(1),
		Nonce:     big.NewInt(0),
		Timestamp: big.NewInt(1),
	}
	_, err := c.Settle(context.Background(), record, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gerror.ErrChainCallReverted))
	revertErr, ok := AsRevert(err)
	require.True(t, ok)
	assert.Equal(t, RevertAlreadyProcessed, revertErr.Kind)
	assert.Empty(t, backend.sent)
}

func TestAwaitConfirmation(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend, 200*time.Millisecond)
	ctx := context.Background()

	pending, err := c.PublishRoot(ctx, DirectionLock, common.HexToHash("0x02"), nil)
	require.NoError(t, err)

	t.Run("timeout", func(t *testing.T) {
		_, err := c.AwaitConfirmation(ctx, pending)
		require.Error(t, err)
		assert.True(t, errors.Is(err, gerror.ErrChainCallTimeout))
		assert.False(t, errors.Is(err, gerror.ErrChainCallReverted))
	})

	t.Run("success", func(t *testing.T) {
		backend.mine(pending.Hash, ethtypes.ReceiptStatusSuccessful)
		receipt, err := c.AwaitConfirmation(ctx, pending)
		require.NoError(t, err)
		assert.Equal(t, pending.Hash, receipt.TxHash)
	})

	t.Run("reverted", func(t *testing.T) {
		failed, err := c.PublishRoot(ctx, DirectionLock, common.HexToHash("0x03"), nil)
		require.NoError(t, err)
		backend.mine(failed.Hash, ethtypes.ReceiptStatusFailed)
		backend.callErr = &rpcDataError{msg: "execution reverted", data: revertData(t, "NOT_RELAYER")}
		_, err = c.AwaitConfirmation(ctx, failed)
		revertErr, ok := AsRevert(err)
		require.True(t, ok)
		assert.Equal(t, RevertUnauthorized, revertErr.Kind)
		assert.Equal(t, failed.Hash, revertErr.TxHash)
	})
}

func TestCurrentRootAndProcessed(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend, time.Second)
	root := common.HexToHash("0xabcdef")
	backend.callOut = root.Bytes()

	got, err := c.CurrentRoot(context.Background(), c.SettlementAddr())
	require.NoError(t, err)
	assert.Equal(t, root, got)

	backend.callOut = common.LeftPadBytes([]byte{1}, 32)
	processed, err := c.IsProcessed(context.Background(), DirectionLock, common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.True(t, processed)

	backend.callOut = nil
	backend.callErr = errors.New("execution reverted: Merkle root not set")
	_, err = c.CurrentRoot(context.Background(), c.SettlementAddr())
	revertErr, ok := AsRevert(err)
	require.True(t, ok)
	assert.Equal(t, RevertStaleRoot, revertErr.Kind)
}

func TestParseTransferLog(t *testing.T) {
	event := vaultABI.Events[eventLocked]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1e18), big.NewInt(3), big.NewInt(1700000000), big.NewInt(11155111), big.NewInt(97))
	require.NoError(t, err)
	id := crypto.Keccak256Hash([]byte("lock"))
	sender := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	to := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	vault := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	vLog := ethtypes.Log{
		Address:     vault,
		Topics:      []common.Hash{event.ID, id, common.BytesToHash(sender.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        data,
		BlockNumber: 42,
		TxHash:      common.HexToHash("0x99"),
	}

	record, err := ParseTransferLog(DirectionLock, vLog)
	require.NoError(t, err)
	assert.Equal(t, DirectionLock, record.Direction)
	assert.Equal(t, vault, record.OriginContract)
	assert.Equal(t, id, record.ID)
	assert.Equal(t, sender, record.Actor)
	assert.Equal(t, to, record.Recipient)
	assert.Equal(t, big.NewInt(1e18), record.Amount)
	assert.Equal(t, big.NewInt(3), record.Nonce)
	assert.Equal(t, uint64(11155111), record.SrcChainID)
	assert.Equal(t, uint64(97), record.DstChainID)
	assert.Equal(t, uint64(42), record.BlockNumber)

	_, err = ParseTransferLog(DirectionBurn, vLog)
	assert.Error(t, err)
}

func TestPackSettle(t *testing.T) {
	record := &TransferRecord{
		Direction:      DirectionBurn,
		OriginContract: common.HexToAddress("0xb2"),
		ID:             common.HexToHash("0xbb"),
		Actor:          common.HexToAddress("0xa1"),
		Recipient:      common.HexToAddress("0xa2"),
		Amount:         big.NewInt(5),
		Nonce:          big.NewInt(1),
		Timestamp:      big.NewInt(2),
		SrcChainID:     97,
		DstChainID:     11155111,
	}
	proof := []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")}
	data, method, err := PackSettle(record, proof)
	require.NoError(t, err)
	assert.Equal(t, methodUnlock, method)
	assert.Equal(t, vaultABI.Methods[methodUnlock].ID, data[:4])

	args, err := vaultABI.Methods[methodUnlock].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(97), args[3])
	assert.Equal(t, record.OriginContract, args[6])
	assert.Equal(t, record.Actor, args[7])
	assert.Len(t, args[8], 2)

	record.Direction = DirectionLock
	data, method, err = PackSettle(record, proof)
	require.NoError(t, err)
	assert.Equal(t, methodMint, method)
	assert.Equal(t, bridgeABI.Methods[methodMint].ID, data[:4])
}
