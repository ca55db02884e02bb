package etherman

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	// vaultABIJSON is the chain A vault: emits Locked, holds the burn root and unlocks
	vaultABIJSON = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"lockId","type":"bytes32"},
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"nonce","type":"uint256"},
		{"indexed":false,"name":"timestamp","type":"uint256"},
		{"indexed":false,"name":"srcChainId","type":"uint256"},
		{"indexed":false,"name":"dstChainId","type":"uint256"}],"name":"Locked","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"burnId","type":"bytes32"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"}],"name":"Unlocked","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":false,"name":"merkleRoot","type":"bytes32"},
		{"indexed":false,"name":"timestamp","type":"uint256"}],"name":"MerkleRootUpdated","type":"event"},
	{"inputs":[],"name":"merkleRoot","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"","type":"bytes32"}],"name":"processedBurns","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"_root","type":"bytes32"}],"name":"updateMerkleRoot","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"name":"burnId","type":"bytes32"},
		{"name":"to","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"bscChainId","type":"uint256"},
		{"name":"burnNonce","type":"uint256"},
		{"name":"burnTimestamp","type":"uint256"},
		{"name":"originBscContract","type":"address"},
		{"name":"burner","type":"address"},
		{"name":"proof","type":"bytes32[]"}],"name":"unlockETH","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

	// bridgeABIJSON is the chain B bridge: holds the lock root and mints
	bridgeABIJSON = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"lockId","type":"bytes32"},
		{"indexed":true,"name":"sepoliaSender","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"}],"name":"MintedFromSepolia","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":false,"name":"merkleRoot","type":"bytes32"},
		{"indexed":false,"name":"timestamp","type":"uint256"}],"name":"MerkleRootUpdated","type":"event"},
	{"inputs":[],"name":"merkleRoot","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"","type":"bytes32"}],"name":"processedLocks","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"_root","type":"bytes32"}],"name":"updateMerkleRoot","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"name":"lockId","type":"bytes32"},
		{"name":"sepoliaSender","type":"address"},
		{"name":"to","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"lockNonce","type":"uint256"},
		{"name":"lockTimestamp","type":"uint256"},
		{"name":"proof","type":"bytes32[]"}],"name":"mintFromSepolia","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

	// tokenABIJSON is the chain B wrapped token: emits Burned
	tokenABIJSON = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"burnId","type":"bytes32"},
		{"indexed":true,"name":"burner","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"nonce","type":"uint256"},
		{"indexed":false,"name":"timestamp","type":"uint256"},
		{"indexed":false,"name":"srcChainId","type":"uint256"},
		{"indexed":false,"name":"dstChainId","type":"uint256"}],"name":"Burned","type":"event"},
	{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`
)

const (
	methodMerkleRoot       = "merkleRoot"
	methodUpdateMerkleRoot = "updateMerkleRoot"
	methodMint             = "mintFromSepolia"
	methodUnlock           = "unlockETH"
	methodProcessedLocks   = "processedLocks"
	methodProcessedBurns   = "processedBurns"

	eventLocked            = "Locked"
	eventBurned            = "Burned"
	eventMerkleRootUpdated = "MerkleRootUpdated"
)

var (
	vaultABI  = mustParseABI(vaultABIJSON)
	bridgeABI = mustParseABI(bridgeABIJSON)
	tokenABI  = mustParseABI(tokenABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// settlementABI is the ABI of the contract settling transfers of the direction
func settlementABI(d Direction) abi.ABI {
	if d == DirectionBurn {
		return vaultABI
	}
	return bridgeABI
}

// originABI is the ABI of the contract emitting transfers of the direction
func originABI(d Direction) abi.ABI {
	if d == DirectionBurn {
		return tokenABI
	}
	return vaultABI
}
