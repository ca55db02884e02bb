package synchronizer

import (
	"github.com/0xPolygonHermez/zkevm-node/config/types"
)

// Config represents the configuration of the synchronizer
type Config struct {
	// SyncInterval is the delay interval between reading new transfer events
	SyncInterval types.Duration `mapstructure:"SyncInterval"`

	// SyncChunkSize is the number of blocks to sync on each chunk
	SyncChunkSize uint64 `mapstructure:"SyncChunkSize"`

	// ConfirmationDepth is how many blocks a transfer event must be buried under before it is relayed
	ConfirmationDepth uint64 `mapstructure:"ConfirmationDepth"`

	// RelayerURL is the api of the process that owns the accumulators. Observers started
	// without the api forward their records there.
	RelayerURL string `mapstructure:"RelayerURL"`
	// RelayerTimeout bounds one forwarded settlement
	RelayerTimeout types.Duration `mapstructure:"RelayerTimeout"`

	ChainA ChainConfig `mapstructure:"ChainA"`
	ChainB ChainConfig `mapstructure:"ChainB"`
}

// ChainConfig enables the observer on one source chain
type ChainConfig struct {
	Enabled bool `mapstructure:"Enabled"`
	// GenBlockNumber is the block the origin contract was deployed at
	GenBlockNumber uint64 `mapstructure:"GenBlockNumber"`
}
