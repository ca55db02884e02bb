package server

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/ingest"
	"github.com/lockburn/bridge-relayer/sequencer/types"
)

type payloadSubmitter interface {
	Submit(ctx context.Context, direction etherman.Direction, payload *ingest.Payload) (*types.SettlementTask, error)
}

type taskManager interface {
	Get(ctx context.Context, direction etherman.Direction, id common.Hash) (*types.SettlementTask, error)
	Retry(ctx context.Context, direction etherman.Direction, id common.Hash) (*types.SettlementTask, error)
	Resume(ctx context.Context, direction etherman.Direction) error
	Halted(direction etherman.Direction) (string, bool)
}

type rootReader interface {
	Root(direction etherman.Direction) (common.Hash, error)
	Len(direction etherman.Direction) (uint64, error)
}

type statusReader interface {
	GetTaskStatus(ctx context.Context, key string) (*types.View, error)
}

type healthChecker interface {
	Ping(ctx context.Context) error
}
