package sequencer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/metrics"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

const (
	defaultFrequencyToMonitorTasks = 30 * time.Second
	defaultTaskLockTTL             = 10 * time.Minute
	defaultMaxRootRepublish        = 3
)

// resumableStates are loaded by the monitor loop. Failed tasks are only picked when they timed out.
var resumableStates = []types.TaskState{
	types.TaskStateReceived,
	types.TaskStateLeafComputed,
	types.TaskStateAccumulated,
	types.TaskStateRootPublishSubmitted,
	types.TaskStateRootPublishConfirmed,
	types.TaskStateSettlementSubmitted,
	types.TaskStateFailed,
}

type step int

const (
	stepPublish step = iota
	stepSettle
)

type destination struct {
	chain chainEndpoint
	// held exclusively while a root publication is in flight and shared while settlements are,
	// so the destination root cannot change between proof derivation and settlement
	lock *sync.RWMutex
}

// Sequencer drives settlement tasks through root publication and settlement on the destination chain
type Sequencer struct {
	cfg          Config
	accumulator  accumulatorInterface
	destinations map[etherman.ChainSide]*destination
	storage      storageInterface
	locker       TaskLocker
	pusher       TaskPusher
	taskLocks    *keyedMutex

	haltMu sync.RWMutex
	halted map[etherman.Direction]string

	now func() time.Time
}

// NewSequencer creates a Sequencer. locker and pusher are optional.
// Directions halted before a restart stay halted.
func NewSequencer(ctx context.Context, cfg Config, accumulator accumulatorInterface, chainA, chainB chainEndpoint, storage interface{}, locker TaskLocker, pusher TaskPusher) (*Sequencer, error) {
	if chainA == nil || chainB == nil {
		return nil, errors.New("both chain endpoints are required")
	}
	st, ok := storage.(storageInterface)
	if !ok {
		return nil, fmt.Errorf("storage %T does not store settlement tasks", storage)
	}
	if cfg.FrequencyToMonitorTasks.Duration == 0 {
		cfg.FrequencyToMonitorTasks.Duration = defaultFrequencyToMonitorTasks
	}
	if cfg.TaskLockTTL.Duration == 0 {
		cfg.TaskLockTTL.Duration = defaultTaskLockTTL
	}
	if cfg.MaxRootRepublish <= 0 {
		cfg.MaxRootRepublish = defaultMaxRootRepublish
	}
	halted, err := st.GetDirectionHalts(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load halted directions: %w", err)
	}
	for direction, reason := range halted {
		metrics.RecordDirectionHalted(string(direction), true)
		log.Warnf("direction %s is halted until an operator resumes it: %s", direction, reason)
	}
	return &Sequencer{
		cfg:         cfg,
		accumulator: accumulator,
		destinations: map[etherman.ChainSide]*destination{
			etherman.ChainA: {chain: chainA, lock: &sync.RWMutex{}},
			etherman.ChainB: {chain: chainB, lock: &sync.RWMutex{}},
		},
		storage:   st,
		locker:    locker,
		pusher:    pusher,
		taskLocks: newKeyedMutex(),
		halted:    halted,
		now:       time.Now,
	}, nil
}

// Settle runs the settlement of a transfer record until its task is terminal.
// Chain reverts and timeouts end the task in Failed and are not returned as errors;
// the returned error reports validation, halting and infrastructure failures.
// Ingesting a record whose task already exists returns that task.
func (s *Sequencer) Settle(ctx context.Context, record etherman.TransferRecord) (*types.SettlementTask, error) {
	if _, err := s.destination(record.Direction); err != nil {
		return nil, err
	}
	release, err := s.lockTask(ctx, record.Direction, record.ID)
	if err != nil {
		return nil, err
	}
	defer release()
	logger := log.WithFields("direction", record.Direction, "id", record.ID.String())

	task, err := s.storage.GetSettlementTask(ctx, record.Direction, record.ID, nil)
	if errors.Is(err, gerror.ErrStorageNotFound) {
		if err := s.checkHalted(record.Direction); err != nil {
			return nil, err
		}
		task = types.NewSettlementTask(record, s.now())
		if err := s.storage.AddSettlementTask(ctx, task, nil); err != nil {
			return nil, err
		}
		s.notify(ctx, task)
		logger.Infof("settlement task created, recipient %s amount %s", record.Recipient.String(), record.Amount.String())
	} else if err != nil {
		return nil, err
	} else {
		if !sameTransfer(&task.Record, &record) {
			logger.Warnf("record differs from the one already ingested with the same id")
			return task, fmt.Errorf("%w: %s", gerror.ErrTaskConflict, record.ID.String())
		}
		if task.State.IsTerminal() {
			logger.Infof("duplicate ingestion, task already %s", task.State)
			return task, nil
		}
		if err := s.checkHalted(record.Direction); err != nil {
			return task, err
		}
		logger.Infof("resuming task from %s", task.State)
	}
	return task, s.drive(ctx, task)
}

// Retry reconciles a failed task with the destination chain. A transfer the destination already
// settled ends Settled; otherwise the task restarts from Accumulated, replacing any unconfirmed
// transaction with one using the same nonce. Rejected tasks cannot be retried.
func (s *Sequencer) Retry(ctx context.Context, direction etherman.Direction, id common.Hash) (*types.SettlementTask, error) {
	if _, err := s.destination(direction); err != nil {
		return nil, err
	}
	release, err := s.lockTask(ctx, direction, id)
	if err != nil {
		return nil, err
	}
	defer release()

	task, err := s.storage.GetSettlementTask(ctx, direction, id, nil)
	if err != nil {
		return nil, err
	}
	return task, s.retry(ctx, task)
}

// retry expects the task lock to be held
func (s *Sequencer) retry(ctx context.Context, task *types.SettlementTask) error {
	switch task.State {
	case types.TaskStateSettled:
		return nil
	case types.TaskStateRejected:
		return fmt.Errorf("%w: task rejected: %s", gerror.ErrTaskNotRetryable, task.FailureReason)
	}
	if err := s.checkHalted(task.Direction()); err != nil {
		return err
	}
	if task.State == types.TaskStateFailed {
		dest, err := s.destination(task.Direction())
		if err != nil {
			return err
		}
		done, err := s.reconcile(ctx, dest.chain, task)
		if err != nil || done {
			return err
		}
		log.WithFields("direction", task.Direction(), "id", task.ID().String()).
			Infof("retrying task after %s failure: %s", task.FailureKind, task.FailureReason)
		task.Attempts++
		task.FailureKind = types.FailureNone
		task.FailureReason = ""
		task.Result = types.ResultNone
		if err := s.transition(ctx, task, types.TaskStateAccumulated); err != nil {
			return err
		}
	}
	return s.drive(ctx, task)
}

// reconcile reads the destination chain before any resubmission. done is true when the task ended Settled.
func (s *Sequencer) reconcile(ctx context.Context, chain chainEndpoint, task *types.SettlementTask) (done bool, err error) {
	logger := log.WithFields("direction", task.Direction(), "id", task.ID().String())
	processed, err := chain.IsProcessed(ctx, task.Direction(), task.ID())
	if err != nil && !errors.Is(err, etherman.ErrProcessedLookupDisabled) {
		return false, err
	}
	if processed {
		logger.Infof("destination already processed the transfer")
		task.Settle()
		return true, s.save(ctx, task)
	}

	if task.SettlementTxHash != nil {
		mined, receipt, err := chain.CheckTxWasMined(ctx, *task.SettlementTxHash)
		if err != nil {
			return false, err
		}
		if mined {
			task.SettlementNonce = nil
			task.SettlementGasPrice = nil
			if receipt.Status == ethTypes.ReceiptStatusSuccessful {
				logger.Infof("settlement tx %s was mined after all", task.SettlementTxHash.String())
				task.Settle()
				return true, s.save(ctx, task)
			}
		}
	}
	if task.RootPublishTxHash != nil && task.RootPublishNonce != nil {
		mined, _, err := chain.CheckTxWasMined(ctx, *task.RootPublishTxHash)
		if err != nil {
			return false, err
		}
		if mined {
			task.RootPublishNonce = nil
			task.RootPublishGasPrice = nil
		}
	}
	return false, nil
}

// Get returns the task of a transfer
func (s *Sequencer) Get(ctx context.Context, direction etherman.Direction, id common.Hash) (*types.SettlementTask, error) {
	return s.storage.GetSettlementTask(ctx, direction, id, nil)
}

// Resume lifts the halt of a direction
func (s *Sequencer) Resume(ctx context.Context, direction etherman.Direction) error {
	if _, err := s.destination(direction); err != nil {
		return err
	}
	s.haltMu.Lock()
	if err := s.storage.DeleteDirectionHalt(ctx, direction, nil); err != nil {
		s.haltMu.Unlock()
		return fmt.Errorf("failed to resume direction %s: %w", direction, err)
	}
	reason, found := s.halted[direction]
	delete(s.halted, direction)
	s.haltMu.Unlock()
	if found {
		log.Infof("direction %s resumed, it was halted because: %s", direction, reason)
	}
	metrics.RecordDirectionHalted(string(direction), false)
	return nil
}

// Halted returns why a direction is halted
func (s *Sequencer) Halted(direction etherman.Direction) (string, bool) {
	s.haltMu.RLock()
	defer s.haltMu.RUnlock()
	reason, found := s.halted[direction]
	return reason, found
}

func (s *Sequencer) halt(ctx context.Context, direction etherman.Direction, reason string) {
	s.haltMu.Lock()
	if _, found := s.halted[direction]; !found {
		s.halted[direction] = reason
	}
	if err := s.storage.SetDirectionHalt(context.WithoutCancel(ctx), direction, reason, nil); err != nil {
		log.Errorf("failed to persist the halt of direction %s, it only lasts until restart: %v", direction, err)
	}
	s.haltMu.Unlock()
	metrics.RecordDirectionHalted(string(direction), true)
	log.Errorf("direction %s halted until an operator resumes it: %s", direction, reason)
}

func (s *Sequencer) checkHalted(direction etherman.Direction) error {
	if reason, halted := s.Halted(direction); halted {
		return fmt.Errorf("%w: %s: %s", gerror.ErrDirectionHalted, direction, reason)
	}
	return nil
}

// Start resumes interrupted tasks and, when enabled, retries timed out ones, until ctx is done
func (s *Sequencer) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FrequencyToMonitorTasks.Duration)
	defer ticker.Stop()
	s.monitorTasks(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.monitorTasks(ctx)
		}
	}
}

func (s *Sequencer) monitorTasks(ctx context.Context) {
	tasks, err := s.storage.GetSettlementTasksByStates(ctx, resumableStates, nil)
	if err != nil {
		log.Errorf("failed to load resumable settlement tasks: %v", err)
		return
	}
	var wg sync.WaitGroup
	for _, task := range tasks {
		if task.State == types.TaskStateFailed && !s.autoRetryable(task) {
			continue
		}
		if _, halted := s.Halted(task.Direction()); halted {
			continue
		}
		release, ok, err := s.tryLockTask(ctx, task.Direction(), task.ID())
		if err != nil {
			log.Errorf("failed to lock task %s/%s: %v", task.Direction(), task.ID().String(), err)
			continue
		}
		if !ok {
			// someone is already driving it
			continue
		}
		wg.Add(1)
		go func(task *types.SettlementTask) {
			defer wg.Done()
			defer release()
			if err := s.resume(ctx, task); err != nil {
				log.Errorf("failed to resume task %s/%s: %v", task.Direction(), task.ID().String(), err)
			}
		}(task)
	}
	wg.Wait()
}

func (s *Sequencer) autoRetryable(task *types.SettlementTask) bool {
	return s.cfg.AutoRetryTimeouts && task.FailureKind == types.FailureTimeout && task.Attempts < s.cfg.MaxAutoRetries
}

// resume reloads the task under its lock, the listed copy may be stale
func (s *Sequencer) resume(ctx context.Context, listed *types.SettlementTask) error {
	task, err := s.storage.GetSettlementTask(ctx, listed.Direction(), listed.ID(), nil)
	if err != nil {
		return err
	}
	if task.State == types.TaskStateFailed && !s.autoRetryable(task) {
		return nil
	}
	return s.retry(ctx, task)
}

// drive runs the task state machine until the task is terminal or a step fails without
// a terminal outcome, in which case the task keeps its state and can be resumed.
func (s *Sequencer) drive(ctx context.Context, task *types.SettlementTask) error {
	republished := 0
	for !task.State.IsTerminal() {
		var err error
		switch task.State {
		case types.TaskStateReceived:
			err = s.computeLeaf(ctx, task)
		case types.TaskStateLeafComputed:
			err = s.accumulate(ctx, task)
		case types.TaskStateAccumulated, types.TaskStateRootPublishSubmitted:
			err = s.publishRoot(ctx, task)
		case types.TaskStateRootPublishConfirmed, types.TaskStateSettlementSubmitted:
			err = s.settle(ctx, task)
			if err == nil && task.State == types.TaskStateAccumulated {
				republished++
				if republished > s.cfg.MaxRootRepublish {
					task.Fail(types.FailureReverted, fmt.Sprintf("%s: destination root keeps dropping the leaf", etherman.RevertStaleRoot))
					err = s.save(ctx, task)
				}
			}
		default:
			err = fmt.Errorf("unknown task state %q", task.State)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) computeLeaf(ctx context.Context, task *types.SettlementTask) error {
	leaf, err := s.accumulator.EncodeLeaf(&task.Record)
	if errors.Is(err, gerror.ErrCodec) {
		s.halt(ctx, task.Direction(), err.Error())
		task.Reject(types.FailureCodec, err.Error())
		return s.save(ctx, task)
	} else if err != nil {
		return err
	}
	task.Leaf = leaf
	return s.transition(ctx, task, types.TaskStateLeafComputed)
}

func (s *Sequencer) accumulate(ctx context.Context, task *types.SettlementTask) error {
	res, err := s.accumulator.Insert(ctx, task.Direction(), task.Leaf, task.ID())
	if err != nil {
		return err
	}
	if !res.Inserted {
		log.WithFields("direction", task.Direction(), "id", task.ID().String()).
			Infof("leaf %s already accumulated at index %d", task.Leaf.String(), res.Index)
	}
	task.LeafIndex = res.Index
	task.Root = res.Root
	task.Proof = res.Proof
	metrics.RecordAccumulatorSize(string(task.Direction()), int(res.Size))
	return s.transition(ctx, task, types.TaskStateAccumulated)
}

// publishRoot makes the destination hold a root covering the task leaf. The on-chain root is read
// first and publication is skipped when it already covers the leaf, so a root published for an
// earlier task (or by a transaction that timed out but landed) is reused.
func (s *Sequencer) publishRoot(ctx context.Context, task *types.SettlementTask) error {
	dest, err := s.destination(task.Direction())
	if err != nil {
		return err
	}
	dest.lock.Lock()
	defer dest.lock.Unlock()
	chain := dest.chain

	if task.State == types.TaskStateRootPublishSubmitted {
		data, err := etherman.PackPublishRoot(task.Direction(), task.Root)
		if err != nil {
			return err
		}
		return s.confirmRootPublish(ctx, chain, task, s.pendingTx(chain, *task.RootPublishTxHash, task.RootPublishNonce, data))
	}

	onChain, err := chain.CurrentRoot(ctx, chain.SettlementAddr())
	if err != nil {
		return err
	}
	if _, covered, err := s.accumulator.ProofAgainst(task.Direction(), task.Leaf, onChain); err != nil {
		return err
	} else if covered {
		log.WithFields("direction", task.Direction(), "id", task.ID().String()).
			Debugf("destination root %s already covers the leaf", onChain.String())
		task.Root = onChain
		return s.transition(ctx, task, types.TaskStateRootPublishConfirmed)
	}

	// the latest root covers every leaf inserted so far, this task's included
	root, err := s.accumulator.Root(task.Direction())
	if err != nil {
		return err
	}
	pending, err := s.submit(replacement(task.RootPublishNonce, task.RootPublishGasPrice), func(replace *etherman.Replacement) (*etherman.PendingTx, error) {
		return chain.PublishRoot(ctx, task.Direction(), root, replace)
	})
	if err != nil {
		return s.failOnCallError(ctx, task, err, stepPublish)
	}
	task.Root = root
	task.RootPublishTxHash = &pending.Hash
	task.RootPublishNonce = &pending.Nonce
	task.RootPublishGasPrice = pending.GasPrice
	if err := s.transition(ctx, task, types.TaskStateRootPublishSubmitted); err != nil {
		return err
	}
	return s.confirmRootPublish(ctx, chain, task, pending)
}

func (s *Sequencer) confirmRootPublish(ctx context.Context, chain chainEndpoint, task *types.SettlementTask, pending *etherman.PendingTx) error {
	if _, err := chain.AwaitConfirmation(ctx, pending); err != nil {
		return s.failOnCallError(ctx, task, err, stepPublish)
	}
	task.RootPublishNonce = nil
	task.RootPublishGasPrice = nil
	return s.transition(ctx, task, types.TaskStateRootPublishConfirmed)
}

// settle submits the settlement with a proof against the root the destination holds right now
func (s *Sequencer) settle(ctx context.Context, task *types.SettlementTask) error {
	dest, err := s.destination(task.Direction())
	if err != nil {
		return err
	}
	dest.lock.RLock()
	defer dest.lock.RUnlock()
	chain := dest.chain

	if task.State == types.TaskStateSettlementSubmitted {
		data, _, err := etherman.PackSettle(&task.Record, task.Proof)
		if err != nil {
			return err
		}
		return s.confirmSettlement(ctx, chain, task, s.pendingTx(chain, *task.SettlementTxHash, task.SettlementNonce, data))
	}

	onChain, err := chain.CurrentRoot(ctx, chain.SettlementAddr())
	if err != nil {
		return err
	}
	proof, covered, err := s.accumulator.ProofAgainst(task.Direction(), task.Leaf, onChain)
	if err != nil {
		return err
	}
	if !covered {
		log.WithFields("direction", task.Direction(), "id", task.ID().String()).
			Warnf("destination root %s does not cover the leaf anymore, publishing again", onChain.String())
		return s.transition(ctx, task, types.TaskStateAccumulated)
	}
	task.Root = onChain
	task.Proof = proof

	pending, err := s.submit(replacement(task.SettlementNonce, task.SettlementGasPrice), func(replace *etherman.Replacement) (*etherman.PendingTx, error) {
		return chain.Settle(ctx, &task.Record, proof, replace)
	})
	if err != nil {
		return s.failOnCallError(ctx, task, err, stepSettle)
	}
	task.SettlementTxHash = &pending.Hash
	task.SettlementNonce = &pending.Nonce
	task.SettlementGasPrice = pending.GasPrice
	if err := s.transition(ctx, task, types.TaskStateSettlementSubmitted); err != nil {
		return err
	}
	return s.confirmSettlement(ctx, chain, task, pending)
}

func (s *Sequencer) confirmSettlement(ctx context.Context, chain chainEndpoint, task *types.SettlementTask, pending *etherman.PendingTx) error {
	if _, err := chain.AwaitConfirmation(ctx, pending); err != nil {
		return s.failOnCallError(ctx, task, err, stepSettle)
	}
	task.SettlementNonce = nil
	task.SettlementGasPrice = nil
	task.Settle()
	log.WithFields("direction", task.Direction(), "id", task.ID().String()).
		Infof("settled by tx %s", pending.Hash.String())
	return s.save(ctx, task)
}

// submit sends a transaction, replacing the pending one when replace is set.
// A replacement whose nonce was consumed meanwhile is sent again with a fresh nonce.
func (s *Sequencer) submit(replace *etherman.Replacement, send func(replace *etherman.Replacement) (*etherman.PendingTx, error)) (*etherman.PendingTx, error) {
	pending, err := send(replace)
	if err != nil && replace != nil && strings.Contains(strings.ToLower(err.Error()), "nonce too low") {
		log.Warnf("nonce %d already used, sending with a new nonce", replace.Nonce)
		return send(nil)
	}
	return pending, err
}

// replacement describes the pending tx of a step, nil when there is none
func replacement(nonce *uint64, gasPrice *big.Int) *etherman.Replacement {
	if nonce == nil {
		return nil
	}
	return &etherman.Replacement{Nonce: *nonce, GasPrice: gasPrice}
}

// failOnCallError ends the task when err is a revert or a confirmation timeout.
// Other errors are returned and leave the task resumable.
func (s *Sequencer) failOnCallError(ctx context.Context, task *types.SettlementTask, err error, st step) error {
	logger := log.WithFields("direction", task.Direction(), "id", task.ID().String())
	var timeoutErr *etherman.TimeoutError
	if revertErr, ok := etherman.AsRevert(err); ok {
		if revertErr.TxHash != (common.Hash{}) {
			// mined, the nonce is consumed
			if st == stepPublish {
				task.RootPublishNonce = nil
				task.RootPublishGasPrice = nil
			} else {
				task.SettlementNonce = nil
				task.SettlementGasPrice = nil
			}
		}
		if st == stepSettle && revertErr.Kind == etherman.RevertAlreadyProcessed {
			logger.Infof("destination already processed the transfer: %s", revertErr.Reason)
			task.Settle()
			return s.save(ctx, task)
		}
		logger.Warnf("chain call reverted: %v", revertErr)
		task.Fail(types.FailureReverted, fmt.Sprintf("%s: %s", revertErr.Kind, revertErr.Reason))
		return s.save(ctx, task)
	}
	if errors.As(err, &timeoutErr) {
		logger.Warnf("%v, outcome is indeterminate until reconciled", timeoutErr)
		task.Fail(types.FailureTimeout, timeoutErr.Error())
		return s.save(ctx, task)
	}
	return err
}

func (s *Sequencer) pendingTx(chain chainEndpoint, hash common.Hash, nonce *uint64, data []byte) *etherman.PendingTx {
	pending := &etherman.PendingTx{
		Hash: hash,
		From: chain.From(),
		To:   chain.SettlementAddr(),
		Data: data,
	}
	if nonce != nil {
		pending.Nonce = *nonce
	}
	return pending
}

func (s *Sequencer) transition(ctx context.Context, task *types.SettlementTask, state types.TaskState) error {
	task.State = state
	return s.save(ctx, task)
}

// save persists the task. The write is not bound to the caller's cancellation so a broadcast
// transaction hash is stored before waiting for it even when the caller went away.
func (s *Sequencer) save(ctx context.Context, task *types.SettlementTask) error {
	task.UpdatedAt = s.now()
	ctx = context.WithoutCancel(ctx)
	if err := s.storage.UpdateSettlementTask(ctx, task, nil); err != nil {
		return err
	}
	s.notify(ctx, task)
	return nil
}

// notify publishes a state change. Failures are logged, the database stays the source of truth.
func (s *Sequencer) notify(ctx context.Context, task *types.SettlementTask) {
	direction := string(task.Direction())
	metrics.RecordTaskState(direction, task.State.String())
	if task.State.IsTerminal() {
		metrics.RecordTaskResult(direction, string(task.Result), task.UpdatedAt.Sub(task.CreatedAt))
	}
	view := task.View()
	if s.locker != nil {
		if err := s.locker.SetTaskStatus(ctx, TaskKey(task.Direction(), task.ID()), view); err != nil {
			log.Warnf("failed to cache task status: %v", err)
		}
	}
	if s.pusher != nil {
		if err := s.pusher.PushTaskUpdate(view); err != nil {
			log.Warnf("failed to push task status: %v", err)
		}
	}
}

func (s *Sequencer) destination(direction etherman.Direction) (*destination, error) {
	switch direction {
	case etherman.DirectionLock, etherman.DirectionBurn:
		return s.destinations[direction.Destination()], nil
	}
	return nil, gerror.ErrUnknownDirection
}

func (s *Sequencer) lockTask(ctx context.Context, direction etherman.Direction, id common.Hash) (func(), error) {
	key := TaskKey(direction, id)
	release, err := s.taskLocks.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	unlock, ok, err := s.lockShared(ctx, key)
	if err != nil || !ok {
		release()
		if err == nil {
			err = gerror.ErrTaskInProgress
		}
		return nil, err
	}
	return func() {
		unlock()
		release()
	}, nil
}

func (s *Sequencer) tryLockTask(ctx context.Context, direction etherman.Direction, id common.Hash) (func(), bool, error) {
	key := TaskKey(direction, id)
	release, ok := s.taskLocks.tryLock(key)
	if !ok {
		return nil, false, nil
	}
	unlock, ok, err := s.lockShared(ctx, key)
	if err != nil || !ok {
		release()
		return nil, false, err
	}
	return func() {
		unlock()
		release()
	}, true, nil
}

// lockShared takes the task lock shared by all replicas
func (s *Sequencer) lockShared(ctx context.Context, key string) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}
	token, ok, err := s.locker.TryLockTask(ctx, key, s.cfg.TaskLockTTL.Duration)
	if err != nil || !ok {
		return nil, ok, err
	}
	return func() {
		if err := s.locker.UnlockTask(context.WithoutCancel(ctx), key, token); err != nil {
			log.Errorf("failed to release task lock %s: %v", key, err)
		}
	}, true, nil
}

// TaskKey identifies a task across the relayer components
func TaskKey(direction etherman.Direction, id common.Hash) string {
	return string(direction) + ":" + id.String()
}

// sameTransfer compares the leaf fields of two records
func sameTransfer(a, b *etherman.TransferRecord) bool {
	return a.Direction == b.Direction &&
		a.OriginContract == b.OriginContract &&
		a.ID == b.ID &&
		a.Actor == b.Actor &&
		a.Recipient == b.Recipient &&
		bigEqual(a.Amount, b.Amount) &&
		bigEqual(a.Nonce, b.Nonce) &&
		bigEqual(a.Timestamp, b.Timestamp) &&
		a.SrcChainID == b.SrcChainID &&
		a.DstChainID == b.DstChainID
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
