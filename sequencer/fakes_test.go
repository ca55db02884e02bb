package sequencer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v4"
	"github.com/lockburn/bridge-relayer/bridgectrl"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

// memTaskStore keeps copies so callers cannot mutate the stored tasks
type memTaskStore struct {
	mu    sync.Mutex
	tasks map[string]types.SettlementTask
	halts map[etherman.Direction]string
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{
		tasks: make(map[string]types.SettlementTask),
		halts: make(map[etherman.Direction]string),
	}
}

func (s *memTaskStore) GetDirectionHalts(_ context.Context, _ pgx.Tx) (map[etherman.Direction]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	halts := make(map[etherman.Direction]string, len(s.halts))
	for d, reason := range s.halts {
		halts[d] = reason
	}
	return halts, nil
}

func (s *memTaskStore) SetDirectionHalt(_ context.Context, direction etherman.Direction, reason string, _ pgx.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halts[direction] = reason
	return nil
}

func (s *memTaskStore) DeleteDirectionHalt(_ context.Context, direction etherman.Direction, _ pgx.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.halts, direction)
	return nil
}

func copyTask(task *types.SettlementTask) types.SettlementTask {
	cp := *task
	cp.Proof = append([]common.Hash(nil), task.Proof...)
	return cp
}

func (s *memTaskStore) AddSettlementTask(_ context.Context, task *types.SettlementTask, _ pgx.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := TaskKey(task.Direction(), task.ID())
	if _, found := s.tasks[key]; found {
		return errors.New("duplicated task")
	}
	s.tasks[key] = copyTask(task)
	return nil
}

func (s *memTaskStore) UpdateSettlementTask(_ context.Context, task *types.SettlementTask, _ pgx.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := TaskKey(task.Direction(), task.ID())
	if _, found := s.tasks[key]; !found {
		return gerror.ErrStorageNotFound
	}
	s.tasks[key] = copyTask(task)
	return nil
}

func (s *memTaskStore) GetSettlementTask(_ context.Context, direction etherman.Direction, id common.Hash, _ pgx.Tx) (*types.SettlementTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, found := s.tasks[TaskKey(direction, id)]
	if !found {
		return nil, gerror.ErrStorageNotFound
	}
	cp := copyTask(&task)
	return &cp, nil
}

func (s *memTaskStore) GetSettlementTasksByStates(_ context.Context, states []types.TaskState, _ pgx.Tx) ([]*types.SettlementTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*types.SettlementTask
	for _, task := range s.tasks {
		for _, st := range states {
			if task.State == st {
				cp := copyTask(&task)
				res = append(res, &cp)
				break
			}
		}
	}
	return res, nil
}

type memLeafStore struct {
	mu     sync.Mutex
	leaves map[etherman.Direction][]common.Hash
}

func (s *memLeafStore) AddLeaf(_ context.Context, direction etherman.Direction, _ uint64, leaf, _ common.Hash, _ pgx.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves[direction] = append(s.leaves[direction], leaf)
	return nil
}

func (s *memLeafStore) GetLeaves(_ context.Context, direction etherman.Direction, _ pgx.Tx) ([]common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.Hash(nil), s.leaves[direction]...), nil
}

type fakeTx struct {
	nonce   uint64
	method  string
	apply   func() (ok bool, reason string)
	mined   bool
	success bool
	reason  string
}

// fakeDestination models a settlement contract: it holds one root, verifies proofs against it by
// recomputing the leaf from the call arguments, and rejects already processed ids.
type fakeDestination struct {
	mu sync.Mutex

	name            string
	addr            common.Address
	from            common.Address
	processedLookup bool

	root      common.Hash
	processed map[common.Hash]bool
	balances  map[common.Address]*big.Int
	nextNonce uint64
	txs       map[common.Hash]*fakeTx
	byNonce   map[uint64]common.Hash

	// holdSettlements leaves settlement txs unmined so their confirmation times out
	holdSettlements bool
	holdPublishes   bool
	// beforeSettle runs before a settlement is estimated
	beforeSettle func(d *fakeDestination)

	// gasPrice is the suggested gas price
	gasPrice     *big.Int
	replacements []fakeReplacement

	sent         int
	publishCount int
	settleCount  int
}

type fakeReplacement struct {
	method   string
	nonce    uint64
	replaced *big.Int
	gasPrice *big.Int
}

func newFakeDestination(name string) *fakeDestination {
	return &fakeDestination{
		name:      name,
		addr:      common.HexToAddress("0x" + name + "00000000000000000000000000000000000001"),
		from:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
		root:      bridgectrl.ZeroRoot,
		processed: make(map[common.Hash]bool),
		balances:  make(map[common.Address]*big.Int),
		txs:       make(map[common.Hash]*fakeTx),
		byNonce:   make(map[uint64]common.Hash),
		gasPrice:  big.NewInt(1000000000),
	}
}

func (d *fakeDestination) Name() string                   { return d.name }
func (d *fakeDestination) From() common.Address           { return d.from }
func (d *fakeDestination) SettlementAddr() common.Address { return d.addr }

func (d *fakeDestination) CurrentRoot(_ context.Context, _ common.Address) (common.Hash, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root, nil
}

func (d *fakeDestination) IsProcessed(_ context.Context, _ etherman.Direction, id common.Hash) (bool, error) {
	if !d.processedLookup {
		return false, etherman.ErrProcessedLookupDisabled
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processed[id], nil
}

func (d *fakeDestination) PublishRoot(_ context.Context, _ etherman.Direction, root common.Hash, replace *etherman.Replacement) (*etherman.PendingTx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publishCount++
	return d.send(replace, "updateMerkleRoot", root.Bytes(), d.holdPublishes, func() (bool, string) {
		d.root = root
		return true, ""
	})
}

func (d *fakeDestination) Settle(_ context.Context, record *etherman.TransferRecord, proof []common.Hash, replace *etherman.Replacement) (*etherman.PendingTx, error) {
	if d.beforeSettle != nil {
		d.beforeSettle(d)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := *record
	proof = append([]common.Hash(nil), proof...)
	check := func() (bool, string) {
		if d.processed[rec.ID] {
			return false, "ALREADY_PROCESSED"
		}
		leaf, err := bridgectrl.EncodeLeaf(&rec)
		if err != nil || !bridgectrl.VerifyProof(leaf, proof, d.root) {
			return false, "INVALID_PROOF"
		}
		return true, ""
	}
	// gas estimation runs the call against the current state
	if ok, reason := check(); !ok {
		return nil, etherman.NewRevertError(reason, common.Hash{})
	}
	d.settleCount++
	return d.send(replace, "settle", rec.ID.Bytes(), d.holdSettlements, func() (bool, string) {
		if ok, reason := check(); !ok {
			return false, reason
		}
		d.processed[rec.ID] = true
		balance, found := d.balances[rec.Recipient]
		if !found {
			balance = new(big.Int)
		}
		d.balances[rec.Recipient] = new(big.Int).Add(balance, rec.Amount)
		return true, ""
	})
}

// send must be called with the lock held
func (d *fakeDestination) send(replace *etherman.Replacement, method string, payload []byte, hold bool, apply func() (bool, string)) (*etherman.PendingTx, error) {
	var n uint64
	gasPrice := new(big.Int).Set(d.gasPrice)
	if replace != nil {
		n = replace.Nonce
		gasPrice = etherman.ReplacementGasPrice(d.gasPrice, replace.GasPrice)
		d.replacements = append(d.replacements, fakeReplacement{method: method, nonce: n, replaced: replace.GasPrice, gasPrice: gasPrice})
		if old, found := d.byNonce[n]; found {
			if tx, ok := d.txs[old]; ok && tx.mined {
				return nil, errors.New("nonce too low")
			}
			// a replacement drops the pending transaction with the same nonce
			delete(d.txs, old)
		}
	} else {
		n = d.nextNonce
		d.nextNonce++
	}
	hash := crypto.Keccak256Hash([]byte(method), payload, new(big.Int).SetUint64(n).Bytes(), big.NewInt(int64(d.sent)).Bytes())
	d.sent++
	tx := &fakeTx{nonce: n, method: method, apply: apply}
	d.txs[hash] = tx
	d.byNonce[n] = hash
	if !hold {
		d.mine(tx)
	}
	return &etherman.PendingTx{Hash: hash, From: d.from, To: d.addr, Nonce: n, GasPrice: gasPrice, SentAt: time.Now()}, nil
}

func (d *fakeDestination) mine(tx *fakeTx) {
	tx.mined = true
	tx.success, tx.reason = tx.apply()
}

// minePending mines every held transaction
func (d *fakeDestination) minePending() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, tx := range d.txs {
		if !tx.mined {
			d.mine(tx)
		}
	}
}

func (d *fakeDestination) AwaitConfirmation(_ context.Context, pending *etherman.PendingTx) (*ethTypes.Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tx, found := d.txs[pending.Hash]
	if !found || !tx.mined {
		return nil, &etherman.TimeoutError{TxHash: pending.Hash, Waited: time.Second}
	}
	if !tx.success {
		return &ethTypes.Receipt{Status: ethTypes.ReceiptStatusFailed, TxHash: pending.Hash}, etherman.NewRevertError(tx.reason, pending.Hash)
	}
	return &ethTypes.Receipt{Status: ethTypes.ReceiptStatusSuccessful, TxHash: pending.Hash}, nil
}

func (d *fakeDestination) CheckTxWasMined(_ context.Context, hash common.Hash) (bool, *ethTypes.Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tx, found := d.txs[hash]
	if !found || !tx.mined {
		return false, nil, nil
	}
	status := ethTypes.ReceiptStatusFailed
	if tx.success {
		status = ethTypes.ReceiptStatusSuccessful
	}
	return true, &ethTypes.Receipt{Status: status, TxHash: hash}, nil
}

func (d *fakeDestination) balance(addr common.Address) *big.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, found := d.balances[addr]; found {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (d *fakeDestination) counts() (publishes, settlements int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.publishCount, d.settleCount
}

// setGasPrice changes the suggested gas price
func (d *fakeDestination) setGasPrice(price *big.Int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gasPrice = price
}

func (d *fakeDestination) replaced() []fakeReplacement {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]fakeReplacement(nil), d.replacements...)
}

func (d *fakeDestination) setRoot(root common.Hash) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.root = root
}

func (d *fakeDestination) markProcessed(id common.Hash) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processed[id] = true
}
