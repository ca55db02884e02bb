package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/hashicorp/go-multierror"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/metrics"
	"github.com/lockburn/bridge-relayer/utils"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

const (
	defaultSyncChunkSize = 1000
	eventTypeTransfer    = "transfer"
)

// Synchronizer observes the origin contract of one chain and feeds its transfers to the sequencer
type Synchronizer interface {
	Sync() error
	Stop()
}

// ClientSynchronizer polls the transfer events of one source chain
type ClientSynchronizer struct {
	etherMan       ethermanInterface
	storage        storageInterface
	sequencer      Relay
	ctx            context.Context
	cancelCtx      context.CancelFunc
	genBlockNumber uint64
	cfg            Config
	chain          string
	direction      etherman.Direction
	synced         bool
}

// NewSynchronizer creates and initializes an instance of Synchronizer
func NewSynchronizer(
	parentCtx context.Context,
	storage interface{},
	sequencer Relay,
	ethMan ethermanInterface,
	genBlockNumber uint64,
	cfg Config) (Synchronizer, error) {
	if cfg.SyncChunkSize == 0 {
		cfg.SyncChunkSize = defaultSyncChunkSize
	}
	store, ok := storage.(storageInterface)
	if !ok {
		return nil, fmt.Errorf("storage %T does not keep the sync progress", storage)
	}
	ctx, cancel := context.WithCancel(parentCtx)
	return &ClientSynchronizer{
		etherMan:       ethMan,
		storage:        store,
		sequencer:      sequencer,
		ctx:            ctx,
		cancelCtx:      cancel,
		genBlockNumber: genBlockNumber,
		cfg:            cfg,
		chain:          ethMan.Name(),
		direction:      etherman.OutgoingDirection(ethMan.Side()),
	}, nil
}

// Sync function will read the last block synced and will continue from that point.
func (s *ClientSynchronizer) Sync() error {
	log.Infof("chain %s: synchronization started, relaying %s transfers", s.chain, s.direction)
	lastBlockSynced, err := s.lastSyncedBlock()
	if err != nil {
		return err
	}
	log.Debugf("chain %s: initial lastBlockSynced: %d", s.chain, lastBlockSynced)
	waitDuration := time.Duration(0)
	for {
		select {
		case <-s.ctx.Done():
			log.Debugf("chain %s: synchronizer ctx done", s.chain)
			return nil
		case <-time.After(waitDuration):
			waitDuration = s.cfg.SyncInterval.Duration
			if lastBlockSynced, err = s.syncBlocks(lastBlockSynced); err != nil {
				if s.ctx.Err() != nil {
					continue
				}
				log.Warnf("chain %s: error syncing blocks: %v", s.chain, err)
			}
		}
	}
}

// Stop function stops the synchronizer
func (s *ClientSynchronizer) Stop() {
	s.cancelCtx()
}

func (s *ClientSynchronizer) lastSyncedBlock() (uint64, error) {
	lastBlockSynced, err := s.storage.GetLastSyncedBlock(s.ctx, s.chain, nil)
	if errors.Is(err, gerror.ErrStorageNotFound) {
		log.Warnf("chain %s: no sync progress stored, starting from block %d", s.chain, s.genBlockNumber)
		if s.genBlockNumber == 0 {
			return 0, nil
		}
		return s.genBlockNumber - 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("chain %s: error getting the last synced block: %w", s.chain, err)
	}
	return lastBlockSynced, nil
}

// syncBlocks relays the transfers of every buried block after lastBlockSynced and returns the new progress
func (s *ClientSynchronizer) syncBlocks(lastBlockSynced uint64) (uint64, error) {
	latest, err := s.etherMan.BlockNumber(s.ctx)
	if err != nil {
		return lastBlockSynced, err
	}
	metrics.RecordLatestBlock(s.chain, latest)
	if latest < s.cfg.ConfirmationDepth {
		return lastBlockSynced, nil
	}
	safeBlock := latest - s.cfg.ConfirmationDepth

	for fromBlock := lastBlockSynced + 1; fromBlock <= safeBlock; fromBlock = lastBlockSynced + 1 {
		toBlock := fromBlock + s.cfg.SyncChunkSize - 1
		if toBlock > safeBlock {
			toBlock = safeBlock
		}
		log.Debugf("chain %s: getting transfers from block %d to block %d", s.chain, fromBlock, toBlock)
		records, err := s.etherMan.GetTransfersByBlockRange(s.ctx, fromBlock, toBlock)
		if err != nil {
			return lastBlockSynced, err
		}
		if err := s.relay(records); err != nil {
			return lastBlockSynced, err
		}
		if err := s.storage.SetLastSyncedBlock(s.ctx, s.chain, toBlock, nil); err != nil {
			return lastBlockSynced, err
		}
		lastBlockSynced = toBlock
		metrics.RecordLastSyncedBlock(s.chain, lastBlockSynced)
	}
	if !s.synced && lastBlockSynced >= safeBlock {
		log.Infof("chain %s synced up to block %d", s.chain, lastBlockSynced)
		s.synced = true
	}
	return lastBlockSynced, nil
}

// relay hands the records of one chunk to the sequencer. The chunk is retried as a whole unless every
// record reached a task, which is safe because settling a known record is idempotent.
func (s *ClientSynchronizer) relay(records []etherman.TransferRecord) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for i := range records {
		record := records[i]
		metrics.RecordSynchronizerEvent(s.chain, eventTypeTransfer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.WithValue(s.ctx, utils.CtxTraceID, utils.GenerateTraceID())
			task, err := s.sequencer.Settle(ctx, record)
			switch {
			case err == nil:
				log.Infof("chain %s: transfer %s in block %d is %s", s.chain, record.ID.String(), record.BlockNumber, task.State)
			case errors.Is(err, gerror.ErrTaskInProgress):
				log.Debugf("chain %s: transfer %s already being settled", s.chain, record.ID.String())
			case errors.Is(err, gerror.ErrTaskConflict):
				log.Errorf("chain %s: transfer %s conflicts with a stored record, skipping: %v", s.chain, record.ID.String(), err)
			default:
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("transfer %s: %w", record.ID.String(), err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return result.ErrorOrNil()
}
