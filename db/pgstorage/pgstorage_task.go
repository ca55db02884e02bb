package pgstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/lib/pq"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

const settlementTaskColumns = `direction, transfer_id, origin_contract, actor, recipient, amount, nonce, timestamp,
	src_chain_id, dst_chain_id, block_num, tx_hash, leaf, leaf_index, root, proof, state, result,
	failure_kind, failure_reason, root_publish_tx_hash, root_publish_nonce, settlement_tx_hash,
	settlement_nonce, attempts, created_at, updated_at, root_publish_gas_price, settlement_gas_price`

// AddSettlementTask inserts a new settlement task
func (p *PostgresStorage) AddSettlementTask(ctx context.Context, task *types.SettlementTask, dbTx pgx.Tx) error {
	const addTaskSQL = `INSERT INTO relayer.settlement_task (` + settlementTaskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`
	r := task.Record
	_, err := p.getExecQuerier(dbTx).Exec(ctx, addTaskSQL,
		string(r.Direction), r.ID.Bytes(), r.OriginContract.Bytes(), r.Actor.Bytes(), r.Recipient.Bytes(),
		bigString(r.Amount), bigString(r.Nonce), bigString(r.Timestamp), r.SrcChainID, r.DstChainID, r.BlockNumber, r.TxHash.Bytes(),
		task.Leaf.Bytes(), task.LeafIndex, task.Root.Bytes(), pq.Array(hashesToBytes(task.Proof)), string(task.State), string(task.Result),
		string(task.FailureKind), task.FailureReason, hashPtrBytes(task.RootPublishTxHash), noncePtr(task.RootPublishNonce),
		hashPtrBytes(task.SettlementTxHash), noncePtr(task.SettlementNonce), task.Attempts, task.CreatedAt, task.UpdatedAt,
		gasPriceString(task.RootPublishGasPrice), gasPriceString(task.SettlementGasPrice))
	return err
}

// UpdateSettlementTask persists the mutable part of a task. The transfer record never changes.
func (p *PostgresStorage) UpdateSettlementTask(ctx context.Context, task *types.SettlementTask, dbTx pgx.Tx) error {
	const updateTaskSQL = `UPDATE relayer.settlement_task
		SET leaf = $3, leaf_index = $4, root = $5, proof = $6, state = $7, result = $8, failure_kind = $9, failure_reason = $10,
			root_publish_tx_hash = $11, root_publish_nonce = $12, settlement_tx_hash = $13, settlement_nonce = $14,
			attempts = $15, updated_at = $16, root_publish_gas_price = $17, settlement_gas_price = $18
		WHERE direction = $1 AND transfer_id = $2`
	tag, err := p.getExecQuerier(dbTx).Exec(ctx, updateTaskSQL,
		string(task.Direction()), task.ID().Bytes(),
		task.Leaf.Bytes(), task.LeafIndex, task.Root.Bytes(), pq.Array(hashesToBytes(task.Proof)), string(task.State), string(task.Result),
		string(task.FailureKind), task.FailureReason, hashPtrBytes(task.RootPublishTxHash), noncePtr(task.RootPublishNonce),
		hashPtrBytes(task.SettlementTxHash), noncePtr(task.SettlementNonce), task.Attempts, task.UpdatedAt,
		gasPriceString(task.RootPublishGasPrice), gasPriceString(task.SettlementGasPrice))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return gerror.ErrStorageNotFound
	}
	return nil
}

// GetSettlementTask loads a task by direction and transfer id
func (p *PostgresStorage) GetSettlementTask(ctx context.Context, direction etherman.Direction, id common.Hash, dbTx pgx.Tx) (*types.SettlementTask, error) {
	const getTaskSQL = "SELECT " + settlementTaskColumns + " FROM relayer.settlement_task WHERE direction = $1 AND transfer_id = $2"
	task, err := scanSettlementTask(p.getExecQuerier(dbTx).QueryRow(ctx, getTaskSQL, string(direction), id.Bytes()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gerror.ErrStorageNotFound
	}
	return task, err
}

// GetSettlementTasksByStates loads every task in one of the given states, oldest first
func (p *PostgresStorage) GetSettlementTasksByStates(ctx context.Context, states []types.TaskState, dbTx pgx.Tx) ([]*types.SettlementTask, error) {
	const getTasksSQL = "SELECT " + settlementTaskColumns + " FROM relayer.settlement_task WHERE state = ANY($1) ORDER BY created_at ASC"
	stateNames := make([]string, len(states))
	for i, s := range states {
		stateNames[i] = string(s)
	}
	rows, err := p.getExecQuerier(dbTx).Query(ctx, getTasksSQL, pq.Array(stateNames))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*types.SettlementTask, 0)
	for rows.Next() {
		task, err := scanSettlementTask(rows)
		if errors.Is(err, gerror.ErrStorageCorrupted) {
			// one bad row must not block every other task from being listed
			log.Errorf("skipping settlement task: %v", err)
			continue
		} else if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanSettlementTask(row pgx.Row) (*types.SettlementTask, error) {
	var (
		task                                  types.SettlementTask
		direction, state, result, failureKind string
		amount, nonce, timestamp              string
		id, origin, actor, recipient          []byte
		txHash, leaf, root                    []byte
		proof                                 [][]byte
		publishTxHash, settlementTxHash       []byte
		publishNonce, settlementNonce         sql.NullInt64
		publishGasPrice, settlementGasPrice   sql.NullString
	)
	err := row.Scan(&direction, &id, &origin, &actor, &recipient, &amount, &nonce, &timestamp,
		&task.Record.SrcChainID, &task.Record.DstChainID, &task.Record.BlockNumber, &txHash, &leaf, &task.LeafIndex, &root, &proof,
		&state, &result, &failureKind, &task.FailureReason, &publishTxHash, &publishNonce, &settlementTxHash, &settlementNonce,
		&task.Attempts, &task.CreatedAt, &task.UpdatedAt, &publishGasPrice, &settlementGasPrice)
	if err != nil {
		return nil, err
	}
	task.Record.Direction = etherman.Direction(direction)
	task.Record.ID = common.BytesToHash(id)
	task.Record.OriginContract = common.BytesToAddress(origin)
	task.Record.Actor = common.BytesToAddress(actor)
	task.Record.Recipient = common.BytesToAddress(recipient)
	task.Record.TxHash = common.BytesToHash(txHash)
	if task.Record.Amount, err = parseUint256("amount", amount); err != nil {
		return nil, err
	}
	if task.Record.Nonce, err = parseUint256("nonce", nonce); err != nil {
		return nil, err
	}
	if task.Record.Timestamp, err = parseUint256("timestamp", timestamp); err != nil {
		return nil, err
	}

	task.Leaf = common.BytesToHash(leaf)
	task.Root = common.BytesToHash(root)
	task.Proof = make([]common.Hash, len(proof))
	for i, p := range proof {
		task.Proof[i] = common.BytesToHash(p)
	}
	task.State = types.TaskState(state)
	task.Result = types.TaskResult(result)
	task.FailureKind = types.FailureKind(failureKind)
	task.RootPublishTxHash = bytesToHashPtr(publishTxHash)
	task.SettlementTxHash = bytesToHashPtr(settlementTxHash)
	task.RootPublishNonce = nullToNonce(publishNonce)
	task.SettlementNonce = nullToNonce(settlementNonce)
	if task.RootPublishGasPrice, err = nullToGasPrice("root_publish_gas_price", publishGasPrice); err != nil {
		return nil, err
	}
	if task.SettlementGasPrice, err = nullToGasPrice("settlement_gas_price", settlementGasPrice); err != nil {
		return nil, err
	}
	return &task, nil
}

// parseUint256 reads a numeric column of a transfer record. A value that does not parse means
// the row is corrupted, it must not reach the leaf codec as a nil number.
func parseUint256(column, value string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(value, 10) //nolint:gomnd
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: settlement task column %s holds %q", gerror.ErrStorageCorrupted, column, value)
	}
	return v, nil
}

func gasPriceString(v *big.Int) interface{} {
	if v == nil {
		return nil
	}
	return v.String()
}

func nullToGasPrice(column string, v sql.NullString) (*big.Int, error) {
	if !v.Valid {
		return nil, nil
	}
	return parseUint256(column, v.String)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func hashesToBytes(hashes []common.Hash) [][]byte {
	res := make([][]byte, len(hashes))
	for i, h := range hashes {
		res[i] = h.Bytes()
	}
	return res
}

func hashPtrBytes(h *common.Hash) []byte {
	if h == nil {
		return nil
	}
	return h.Bytes()
}

func bytesToHashPtr(b []byte) *common.Hash {
	if b == nil {
		return nil
	}
	h := common.BytesToHash(b)
	return &h
}

func noncePtr(n *uint64) interface{} {
	if n == nil {
		return nil
	}
	return int64(*n)
}

func nullToNonce(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}
