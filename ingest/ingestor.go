package ingest

import (
	"context"
	"fmt"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/utils"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

type settler interface {
	Settle(ctx context.Context, record etherman.TransferRecord) (*types.SettlementTask, error)
}

// Ingestor validates pushed transfer payloads and hands them to the sequencer.
// Every push transport goes through it so they share the same payload contract.
type Ingestor struct {
	settler settler
	routes  map[etherman.Direction]Route
}

// NewIngestor creates an Ingestor
func NewIngestor(s settler, routes map[etherman.Direction]Route) *Ingestor {
	return &Ingestor{settler: s, routes: routes}
}

// Submit validates the payload and settles it. Nothing is created when validation fails.
func (i *Ingestor) Submit(ctx context.Context, direction etherman.Direction, payload *Payload) (*types.SettlementTask, error) {
	route, found := i.routes[direction]
	if !found {
		return nil, fmt.Errorf("%w: %q", gerror.ErrUnknownDirection, direction)
	}
	record, err := payload.Record(direction, route)
	if err != nil {
		return nil, err
	}
	ctx, traceID := utils.WithTraceID(ctx)
	log.WithFields(utils.TraceID, traceID).Infof("%s transfer %s received, recipient %s amount %s",
		direction, record.ID.String(), record.Recipient.String(), record.Amount.String())
	return i.settler.Settle(ctx, *record)
}

// SubmitRaw decodes a JSON payload and submits it
func (i *Ingestor) SubmitRaw(ctx context.Context, direction etherman.Direction, data []byte) (*types.SettlementTask, error) {
	payload, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return i.Submit(ctx, direction, payload)
}
