package db

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/lockburn/bridge-relayer/db/pgstorage"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

// Storage interface
type Storage interface {
	BeginDBTransaction(ctx context.Context) (pgx.Tx, error)
	Commit(ctx context.Context, dbTx pgx.Tx) error
	Rollback(ctx context.Context, dbTx pgx.Tx) error
	Ping(ctx context.Context) error
	Close()

	AddLeaf(ctx context.Context, direction etherman.Direction, index uint64, leaf, transferID common.Hash, dbTx pgx.Tx) error
	GetLeaves(ctx context.Context, direction etherman.Direction, dbTx pgx.Tx) ([]common.Hash, error)
	GetLeafCount(ctx context.Context, direction etherman.Direction, dbTx pgx.Tx) (uint64, error)
	AcquireAccumulatorLock(ctx context.Context) (func(), error)

	AddSettlementTask(ctx context.Context, task *types.SettlementTask, dbTx pgx.Tx) error
	UpdateSettlementTask(ctx context.Context, task *types.SettlementTask, dbTx pgx.Tx) error
	GetSettlementTask(ctx context.Context, direction etherman.Direction, id common.Hash, dbTx pgx.Tx) (*types.SettlementTask, error)
	GetSettlementTasksByStates(ctx context.Context, states []types.TaskState, dbTx pgx.Tx) ([]*types.SettlementTask, error)

	GetDirectionHalts(ctx context.Context, dbTx pgx.Tx) (map[etherman.Direction]string, error)
	SetDirectionHalt(ctx context.Context, direction etherman.Direction, reason string, dbTx pgx.Tx) error
	DeleteDirectionHalt(ctx context.Context, direction etherman.Direction, dbTx pgx.Tx) error

	GetLastSyncedBlock(ctx context.Context, chain string, dbTx pgx.Tx) (uint64, error)
	SetLastSyncedBlock(ctx context.Context, chain string, blockNum uint64, dbTx pgx.Tx) error
}

// NewStorage creates a new Storage
func NewStorage(cfg Config) (Storage, error) {
	if cfg.Database == "postgres" {
		return pgstorage.NewPostgresStorage(cfg.pgConfig())
	}
	return nil, gerror.ErrStorageNotRegister
}

// RunMigrations will execute pending migrations if needed to keep
// the database updated with the latest changes
func RunMigrations(cfg Config) error {
	return pgstorage.RunMigrations(cfg.pgConfig())
}

// RunMigrationsDown reverts the applied migrations
func RunMigrationsDown(cfg Config) error {
	return pgstorage.RunMigrationsDown(cfg.pgConfig())
}
