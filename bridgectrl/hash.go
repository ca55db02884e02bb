package bridgectrl

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/keccak256"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/utils/gerror"
	"golang.org/x/crypto/sha3"
)

var (
	// LockTag is the domain separation tag of lock leaves
	LockTag = common.BytesToHash(keccak256.Hash([]byte("LOCK_VAULT_ETH_v1")))
	// BurnTag is the domain separation tag of burn leaves
	BurnTag = common.BytesToHash(keccak256.Hash([]byte("BURN_VAULT_BSC_v1")))

	// ZeroRoot is the root of an empty tree
	ZeroRoot = common.Hash{}

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)) //nolint:gomnd

	leafArguments abi.Arguments
)

func init() {
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	addressTy, _ := abi.NewType("address", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	leafArguments = abi.Arguments{
		{Name: "tag", Type: bytes32Ty},
		{Name: "originContract", Type: addressTy},
		{Name: "id", Type: bytes32Ty},
		{Name: "actor", Type: addressTy},
		{Name: "recipient", Type: addressTy},
		{Name: "amount", Type: uint256Ty},
		{Name: "nonce", Type: uint256Ty},
		{Name: "timestamp", Type: uint256Ty},
		{Name: "srcChainId", Type: uint256Ty},
		{Name: "dstChainId", Type: uint256Ty},
	}
}

// CodecError is returned when a record cannot be encoded without loss
type CodecError struct {
	Field  string
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%v: field %s %s", gerror.ErrCodec, e.Field, e.Reason)
}

// Unwrap lets errors.Is match gerror.ErrCodec
func (e *CodecError) Unwrap() error {
	return gerror.ErrCodec
}

// LeafCodec encodes transfer records into accumulator leaves
type LeafCodec struct {
	hashRounds uint8
}

// NewLeafCodec creates a codec hashing the encoded tuple the given number of times
func NewLeafCodec(hashRounds uint8) (*LeafCodec, error) {
	if hashRounds != 1 && hashRounds != 2 {
		return nil, fmt.Errorf("leaf hash rounds must be 1 or 2, got %d", hashRounds)
	}
	return &LeafCodec{hashRounds: hashRounds}, nil
}

// DefaultLeafCodec hashes the encoded tuple, then hashes the digest once more
var DefaultLeafCodec = &LeafCodec{hashRounds: 2} //nolint:gomnd

// EncodeLeaf encodes the record with the default codec
func EncodeLeaf(record *etherman.TransferRecord) (common.Hash, error) {
	return DefaultLeafCodec.Encode(record)
}

// TagFor returns the domain tag of a direction
func TagFor(direction etherman.Direction) (common.Hash, error) {
	switch direction {
	case etherman.DirectionLock:
		return LockTag, nil
	case etherman.DirectionBurn:
		return BurnTag, nil
	}
	return common.Hash{}, &CodecError{Field: "direction", Reason: fmt.Sprintf("unknown value %q", direction)}
}

// Pack returns the fixed-width abi encoding of the leaf tuple
func (c *LeafCodec) Pack(record *etherman.TransferRecord) ([]byte, error) {
	if record == nil {
		return nil, &CodecError{Field: "record", Reason: "is nil"}
	}
	tag, err := TagFor(record.Direction)
	if err != nil {
		return nil, err
	}
	if record.OriginContract == (common.Address{}) {
		return nil, &CodecError{Field: "originContract", Reason: "is the zero address"}
	}
	for _, f := range []struct {
		name  string
		value *big.Int
	}{
		{"amount", record.Amount},
		{"nonce", record.Nonce},
		{"timestamp", record.Timestamp},
	} {
		if err := checkUint256(f.name, f.value); err != nil {
			return nil, err
		}
	}
	return leafArguments.Pack(
		tag,
		record.OriginContract,
		record.ID,
		record.Actor,
		record.Recipient,
		record.Amount,
		record.Nonce,
		record.Timestamp,
		new(big.Int).SetUint64(record.SrcChainID),
		new(big.Int).SetUint64(record.DstChainID),
	)
}

// Encode computes the leaf of a transfer record
func (c *LeafCodec) Encode(record *etherman.TransferRecord) (common.Hash, error) {
	packed, err := c.Pack(record)
	if err != nil {
		return common.Hash{}, err
	}
	digest := keccak256.Hash(packed)
	for i := uint8(1); i < c.hashRounds; i++ {
		digest = keccak256.Hash(digest)
	}
	return common.BytesToHash(digest), nil
}

func checkUint256(field string, v *big.Int) error {
	switch {
	case v == nil:
		return &CodecError{Field: field, Reason: "is missing"}
	case v.Sign() < 0:
		return &CodecError{Field: field, Reason: "is negative"}
	case v.Cmp(maxUint256) > 0:
		return &CodecError{Field: field, Reason: "overflows uint256"}
	}
	return nil
}

// hashPair hashes two sibling nodes in ascending byte order
func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return hash(a, b)
}

func hash(data ...[KeyLen]byte) [KeyLen]byte {
	var res [KeyLen]byte
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d[:]) //nolint:errcheck,gosec
	}
	copy(res[:], hash.Sum(nil))
	return res
}
