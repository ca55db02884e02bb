package etherman

import (
	"github.com/0xPolygonHermez/zkevm-node/config/types"
	"github.com/ethereum/go-ethereum/common"
)

// Config represents the configuration of the etherman
type Config struct {
	ChainA ChainConfig `mapstructure:"ChainA"`
	ChainB ChainConfig `mapstructure:"ChainB"`
}

// ChainConfig is the connection and contract set of one chain
type ChainConfig struct {
	Name    string `mapstructure:"Name"`
	URL     string `mapstructure:"URL"`
	ChainID uint64 `mapstructure:"ChainID"`

	// SettlementAddr holds the root and settles transfers arriving on this chain
	SettlementAddr common.Address `mapstructure:"SettlementAddr"`
	// OriginAddr emits the events of transfers leaving this chain
	OriginAddr common.Address `mapstructure:"OriginAddr"`

	// Keystore is the relayer identity on this chain. Empty path means read only.
	Keystore types.KeystoreFileConfig `mapstructure:"Keystore"`

	// ConfirmationTimeout bounds the wait for a receipt
	ConfirmationTimeout types.Duration `mapstructure:"ConfirmationTimeout"`
	// PollInterval is the receipt polling period
	PollInterval types.Duration `mapstructure:"PollInterval"`
	// ProcessedLookup enables the processedLocks/processedBurns view used by reconciliation
	ProcessedLookup bool `mapstructure:"ProcessedLookup"`
	// GasLimitMargin is added to the estimated gas, in percent
	GasLimitMargin uint64 `mapstructure:"GasLimitMargin"`
}

// Chain returns the config of a side
func (c Config) Chain(side ChainSide) ChainConfig {
	if side == ChainB {
		return c.ChainB
	}
	return c.ChainA
}
