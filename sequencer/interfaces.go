package sequencer

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/jackc/pgx/v4"
	"github.com/lockburn/bridge-relayer/bridgectrl"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/messagepush"
	"github.com/lockburn/bridge-relayer/sequencer/types"
)

type storageInterface interface {
	AddSettlementTask(ctx context.Context, task *types.SettlementTask, dbTx pgx.Tx) error
	UpdateSettlementTask(ctx context.Context, task *types.SettlementTask, dbTx pgx.Tx) error
	GetSettlementTask(ctx context.Context, direction etherman.Direction, id common.Hash, dbTx pgx.Tx) (*types.SettlementTask, error)
	GetSettlementTasksByStates(ctx context.Context, states []types.TaskState, dbTx pgx.Tx) ([]*types.SettlementTask, error)

	GetDirectionHalts(ctx context.Context, dbTx pgx.Tx) (map[etherman.Direction]string, error)
	SetDirectionHalt(ctx context.Context, direction etherman.Direction, reason string, dbTx pgx.Tx) error
	DeleteDirectionHalt(ctx context.Context, direction etherman.Direction, dbTx pgx.Tx) error
}

type accumulatorInterface interface {
	EncodeLeaf(record *etherman.TransferRecord) (common.Hash, error)
	Insert(ctx context.Context, direction etherman.Direction, leaf, transferID common.Hash) (*bridgectrl.InsertResult, error)
	Root(direction etherman.Direction) (common.Hash, error)
	ProofAgainst(direction etherman.Direction, leaf, root common.Hash) ([]common.Hash, bool, error)
}

type chainEndpoint interface {
	Name() string
	From() common.Address
	SettlementAddr() common.Address
	CurrentRoot(ctx context.Context, contract common.Address) (common.Hash, error)
	IsProcessed(ctx context.Context, direction etherman.Direction, id common.Hash) (bool, error)
	PublishRoot(ctx context.Context, direction etherman.Direction, root common.Hash, replace *etherman.Replacement) (*etherman.PendingTx, error)
	Settle(ctx context.Context, record *etherman.TransferRecord, proof []common.Hash, replace *etherman.Replacement) (*etherman.PendingTx, error)
	AwaitConfirmation(ctx context.Context, pending *etherman.PendingTx) (*ethTypes.Receipt, error)
	CheckTxWasMined(ctx context.Context, txHash common.Hash) (bool, *ethTypes.Receipt, error)
}

// TaskLocker guards a task across relayer replicas
type TaskLocker interface {
	TryLockTask(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	UnlockTask(ctx context.Context, key, token string) error
	SetTaskStatus(ctx context.Context, key string, view types.View) error
}

// TaskPusher publishes task state changes to downstream consumers
type TaskPusher interface {
	PushTaskUpdate(view types.View, optFns ...messagepush.ProduceOptFunc) error
}
