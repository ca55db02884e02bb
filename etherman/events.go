package etherman

import (
	"context"
	"fmt"
	"math/big"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	lockedSignatureHash            = vaultABI.Events[eventLocked].ID
	burnedSignatureHash            = tokenABI.Events[eventBurned].ID
	merkleRootUpdatedSignatureHash = vaultABI.Events[eventMerkleRootUpdated].ID
)

// OutgoingDirection is the direction of transfers leaving the given chain
func OutgoingDirection(side ChainSide) Direction {
	if side == ChainB {
		return DirectionBurn
	}
	return DirectionLock
}

// GetTransfersByBlockRange reads the transfer events emitted by the origin contract in [fromBlock, toBlock]
func (c *Client) GetTransfersByBlockRange(ctx context.Context, fromBlock, toBlock uint64) ([]TransferRecord, error) {
	direction := OutgoingDirection(c.side)
	topic := lockedSignatureHash
	if direction == DirectionBurn {
		topic = burnedSignatureHash
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.cfg.OriginAddr},
		Topics:    [][]common.Hash{{topic}},
	}
	logs, err := c.ethClient.FilterLogs(ctx, query)
	if err != nil {
		return nil, err
	}
	records := make([]TransferRecord, 0, len(logs))
	for _, vLog := range logs {
		if vLog.Removed {
			continue
		}
		record, err := ParseTransferLog(direction, vLog)
		if err != nil {
			log.Warnf("chain %s: skipping undecodable log %s/%d: %v", c.cfg.Name, vLog.TxHash.String(), vLog.Index, err)
			continue
		}
		records = append(records, *record)
	}
	return records, nil
}

// ParseTransferLog decodes a Locked or Burned log into a transfer record.
// The emitting contract is the record's origin contract.
func ParseTransferLog(direction Direction, vLog types.Log) (*TransferRecord, error) {
	eventName, idArg, actorArg := eventLocked, "lockId", "sender"
	if direction == DirectionBurn {
		eventName, idArg, actorArg = eventBurned, "burnId", "burner"
	}
	contractABI := originABI(direction)
	event, found := contractABI.Events[eventName]
	if !found {
		return nil, fmt.Errorf("event %s not in abi", eventName)
	}
	if len(vLog.Topics) == 0 || vLog.Topics[0] != event.ID {
		return nil, fmt.Errorf("log is not a %s event", eventName)
	}

	fields := make(map[string]interface{})
	if err := contractABI.UnpackIntoMap(fields, eventName, vLog.Data); err != nil {
		return nil, err
	}
	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, vLog.Topics[1:]); err != nil {
		return nil, err
	}

	record := &TransferRecord{
		Direction:      direction,
		OriginContract: vLog.Address,
		BlockNumber:    vLog.BlockNumber,
		TxHash:         vLog.TxHash,
	}
	var ok bool
	var id [32]byte
	if id, ok = fields[idArg].([32]byte); !ok {
		return nil, fmt.Errorf("bad %s field", idArg)
	}
	record.ID = id
	if record.Actor, ok = fields[actorArg].(common.Address); !ok {
		return nil, fmt.Errorf("bad %s field", actorArg)
	}
	if record.Recipient, ok = fields["to"].(common.Address); !ok {
		return nil, fmt.Errorf("bad to field")
	}
	for name, dst := range map[string]**big.Int{"amount": &record.Amount, "nonce": &record.Nonce, "timestamp": &record.Timestamp} {
		v, ok := fields[name].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("bad %s field", name)
		}
		*dst = v
	}
	for name, dst := range map[string]*uint64{"srcChainId": &record.SrcChainID, "dstChainId": &record.DstChainID} {
		v, ok := fields[name].(*big.Int)
		if !ok || !v.IsUint64() {
			return nil, fmt.Errorf("bad %s field", name)
		}
		*dst = v.Uint64()
	}
	return record, nil
}

// ParseMerkleRootUpdated decodes a MerkleRootUpdated log
func ParseMerkleRootUpdated(vLog types.Log) (*MerkleRootUpdate, error) {
	if len(vLog.Topics) == 0 || vLog.Topics[0] != merkleRootUpdatedSignatureHash {
		return nil, fmt.Errorf("log is not a %s event", eventMerkleRootUpdated)
	}
	out, err := vaultABI.Unpack(eventMerkleRootUpdated, vLog.Data)
	if err != nil {
		return nil, err
	}
	root, ok := out[0].([32]byte)
	if !ok {
		return nil, fmt.Errorf("bad merkleRoot field")
	}
	ts, ok := out[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("bad timestamp field")
	}
	return &MerkleRootUpdate{
		Root:        root,
		Timestamp:   ts,
		BlockNumber: vLog.BlockNumber,
		TxHash:      vLog.TxHash,
	}, nil
}
