package synchronizer

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/sequencer/types"
)

type ethermanInterface interface {
	Name() string
	Side() etherman.ChainSide
	BlockNumber(ctx context.Context) (uint64, error)
	GetTransfersByBlockRange(ctx context.Context, fromBlock, toBlock uint64) ([]etherman.TransferRecord, error)
}

// storageInterface gathers the methods required to persist the sync progress.
type storageInterface interface {
	GetLastSyncedBlock(ctx context.Context, chain string, dbTx pgx.Tx) (uint64, error)
	SetLastSyncedBlock(ctx context.Context, chain string, blockNum uint64, dbTx pgx.Tx) error
}

// Relay settles the records an observer reads
type Relay interface {
	Settle(ctx context.Context, record etherman.TransferRecord) (*types.SettlementTask, error)
}
