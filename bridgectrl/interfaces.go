package bridgectrl

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/lockburn/bridge-relayer/etherman"
)

// leafStore is the append-only persistence of the accumulator leaves
type leafStore interface {
	AddLeaf(ctx context.Context, direction etherman.Direction, index uint64, leaf, transferID common.Hash, dbTx pgx.Tx) error
	GetLeaves(ctx context.Context, direction etherman.Direction, dbTx pgx.Tx) ([]common.Hash, error)
}

// accumulatorOwner lets one process at a time write the leaves of a database
type accumulatorOwner interface {
	AcquireAccumulatorLock(ctx context.Context) (func(), error)
}
