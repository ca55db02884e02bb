package pgstorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

// PostgresStorage implements the Storage interface
type PostgresStorage struct {
	*pgxpool.Pool
}

// getExecQuerier determines which execQuerier to use, dbTx or the main pgxpool
func (p *PostgresStorage) getExecQuerier(dbTx pgx.Tx) execQuerier {
	if dbTx != nil {
		return &execQuerierWrapper{dbTx}
	}
	return &execQuerierWrapper{p.Pool}
}

// NewPostgresStorage creates a new Storage DB
func NewPostgresStorage(cfg Config) (*PostgresStorage, error) {
	log.Debugf("Create PostgresStorage with Config: host %s port %s db %s", cfg.Host, cfg.Port, cfg.Name)
	config, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s:%s/%s?pool_max_conns=%d", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.MaxConns))
	if err != nil {
		log.Errorf("Unable to parse DB config: %v\n", err)
		return nil, err
	}
	db, err := pgxpool.ConnectConfig(context.Background(), config)
	if err != nil {
		log.Errorf("Unable to connect to database: %v\n", err)
		return nil, err
	}
	return &PostgresStorage{db}, nil
}

// Rollback rollbacks a db transaction.
func (p *PostgresStorage) Rollback(ctx context.Context, dbTx pgx.Tx) error {
	if dbTx != nil {
		return dbTx.Rollback(ctx)
	}
	return gerror.ErrNilDBTransaction
}

// Commit commits a db transaction.
func (p *PostgresStorage) Commit(ctx context.Context, dbTx pgx.Tx) error {
	if dbTx != nil {
		return dbTx.Commit(ctx)
	}
	return gerror.ErrNilDBTransaction
}

// BeginDBTransaction starts a transaction block.
func (p *PostgresStorage) BeginDBTransaction(ctx context.Context) (pgx.Tx, error) {
	return p.Begin(ctx)
}

// AddLeaf appends a leaf to the direction's sequence
func (p *PostgresStorage) AddLeaf(ctx context.Context, direction etherman.Direction, index uint64, leaf, transferID common.Hash, dbTx pgx.Tx) error {
	const addLeafSQL = "INSERT INTO relayer.leaf (direction, leaf_index, leaf, transfer_id) VALUES ($1, $2, $3, $4)"
	_, err := p.getExecQuerier(dbTx).Exec(ctx, addLeafSQL, string(direction), index, leaf.Bytes(), transferID.Bytes())
	return err
}

// GetLeaves returns the direction's leaves in insertion order
func (p *PostgresStorage) GetLeaves(ctx context.Context, direction etherman.Direction, dbTx pgx.Tx) ([]common.Hash, error) {
	const getLeavesSQL = "SELECT leaf FROM relayer.leaf WHERE direction = $1 ORDER BY leaf_index ASC"
	rows, err := p.getExecQuerier(dbTx).Query(ctx, getLeavesSQL, string(direction))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leaves := make([]common.Hash, 0)
	for rows.Next() {
		var leaf []byte
		if err := rows.Scan(&leaf); err != nil {
			return nil, err
		}
		leaves = append(leaves, common.BytesToHash(leaf))
	}
	return leaves, rows.Err()
}

// GetLeafCount returns how many leaves the direction holds
func (p *PostgresStorage) GetLeafCount(ctx context.Context, direction etherman.Direction, dbTx pgx.Tx) (uint64, error) {
	const getLeafCountSQL = "SELECT count(*) FROM relayer.leaf WHERE direction = $1"
	var count uint64
	err := p.getExecQuerier(dbTx).QueryRow(ctx, getLeafCountSQL, string(direction)).Scan(&count)
	return count, err
}

// GetLastSyncedBlock returns the last block the observer fully processed on the chain
func (p *PostgresStorage) GetLastSyncedBlock(ctx context.Context, chain string, dbTx pgx.Tx) (uint64, error) {
	const getLastSyncedBlockSQL = "SELECT block_num FROM relayer.sync_progress WHERE chain = $1"
	var blockNum uint64
	err := p.getExecQuerier(dbTx).QueryRow(ctx, getLastSyncedBlockSQL, chain).Scan(&blockNum)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, gerror.ErrStorageNotFound
	}
	return blockNum, err
}

// SetLastSyncedBlock records the last block the observer fully processed on the chain
func (p *PostgresStorage) SetLastSyncedBlock(ctx context.Context, chain string, blockNum uint64, dbTx pgx.Tx) error {
	const setLastSyncedBlockSQL = `INSERT INTO relayer.sync_progress (chain, block_num, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (chain) DO UPDATE SET block_num = EXCLUDED.block_num, updated_at = EXCLUDED.updated_at`
	_, err := p.getExecQuerier(dbTx).Exec(ctx, setLastSyncedBlockSQL, chain, blockNum)
	return err
}

// GetDirectionHalts returns the halted directions with the reason each was halted for
func (p *PostgresStorage) GetDirectionHalts(ctx context.Context, dbTx pgx.Tx) (map[etherman.Direction]string, error) {
	const getDirectionHaltsSQL = "SELECT direction, reason FROM relayer.direction_halt"
	rows, err := p.getExecQuerier(dbTx).Query(ctx, getDirectionHaltsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	halts := make(map[etherman.Direction]string)
	for rows.Next() {
		var direction, reason string
		if err := rows.Scan(&direction, &reason); err != nil {
			return nil, err
		}
		halts[etherman.Direction(direction)] = reason
	}
	return halts, rows.Err()
}

// SetDirectionHalt records that a direction is halted. The first reason is kept.
func (p *PostgresStorage) SetDirectionHalt(ctx context.Context, direction etherman.Direction, reason string, dbTx pgx.Tx) error {
	const setDirectionHaltSQL = "INSERT INTO relayer.direction_halt (direction, reason, halted_at) VALUES ($1, $2, NOW()) ON CONFLICT (direction) DO NOTHING"
	_, err := p.getExecQuerier(dbTx).Exec(ctx, setDirectionHaltSQL, string(direction), reason)
	return err
}

// DeleteDirectionHalt lifts the halt of a direction
func (p *PostgresStorage) DeleteDirectionHalt(ctx context.Context, direction etherman.Direction, dbTx pgx.Tx) error {
	const deleteDirectionHaltSQL = "DELETE FROM relayer.direction_halt WHERE direction = $1"
	_, err := p.getExecQuerier(dbTx).Exec(ctx, deleteDirectionHaltSQL, string(direction))
	return err
}

// accumulatorLockKey is the advisory lock key held by the process that owns the accumulators
const accumulatorLockKey int64 = 0x6c6f636b6275726e

// AcquireAccumulatorLock takes the session level advisory lock that marks this process as the
// only writer of the leaf sequences. The lock is held on a dedicated connection until release is called.
func (p *PostgresStorage) AcquireAccumulatorLock(ctx context.Context) (func(), error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", accumulatorLockKey).Scan(&acquired); err != nil {
		conn.Release()
		return nil, err
	}
	if !acquired {
		conn.Release()
		return nil, gerror.ErrAccumulatorOwned
	}
	release := func() {
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", accumulatorLockKey); err != nil {
			log.Warnf("error releasing the accumulator lock: %v", err)
		}
		conn.Release()
	}
	return release, nil
}
