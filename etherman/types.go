package etherman

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Direction identifies which way a transfer moves between the two chains
type Direction string

const (
	// DirectionLock is a vault lock on chain A settled by a mint on chain B
	DirectionLock Direction = "lock"
	// DirectionBurn is a wrapped-token burn on chain B settled by an unlock on chain A
	DirectionBurn Direction = "burn"
)

// Directions lists both directions in a stable order
var Directions = []Direction{DirectionLock, DirectionBurn}

// ParseDirection converts a string to a Direction
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case DirectionLock:
		return DirectionLock, nil
	case DirectionBurn:
		return DirectionBurn, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// ChainSide names one of the two managed chains
type ChainSide string

const (
	// ChainA hosts the native-asset vault
	ChainA ChainSide = "A"
	// ChainB hosts the wrapped-token bridge
	ChainB ChainSide = "B"
)

// Source returns the chain where transfers of this direction originate
func (d Direction) Source() ChainSide {
	if d == DirectionBurn {
		return ChainB
	}
	return ChainA
}

// Destination returns the chain where transfers of this direction are settled
func (d Direction) Destination() ChainSide {
	if d == DirectionBurn {
		return ChainA
	}
	return ChainB
}

// TransferRecord is a source-chain lock or burn event
type TransferRecord struct {
	Direction      Direction
	OriginContract common.Address
	ID             common.Hash
	Actor          common.Address
	Recipient      common.Address
	Amount         *big.Int
	Nonce          *big.Int
	Timestamp      *big.Int
	SrcChainID     uint64
	DstChainID     uint64

	// Set only when the record was read from the source chain
	BlockNumber uint64
	TxHash      common.Hash
}

// MerkleRootUpdate is a decoded MerkleRootUpdated event
type MerkleRootUpdate struct {
	Root        common.Hash
	Timestamp   *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// Replacement identifies the pending transaction a new submission replaces
type Replacement struct {
	Nonce uint64
	// GasPrice the replaced transaction was sent with, nil when unknown
	GasPrice *big.Int
}

// PendingTx is a broadcast transaction awaiting confirmation
type PendingTx struct {
	Hash     common.Hash
	From     common.Address
	To       common.Address
	Nonce    uint64
	Gas      uint64
	GasPrice *big.Int
	Data     []byte
	SentAt   time.Time
}
