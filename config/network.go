package config

import (
	"fmt"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
)

// NetworkConfig is the configuration struct for the different environments
type NetworkConfig struct {
	ChainA NetworkChain
	ChainB NetworkChain
}

// NetworkChain holds the well known deployment of one chain
type NetworkChain struct {
	Name           string
	ChainID        uint64
	SettlementAddr common.Address
	OriginAddr     common.Address
	GenBlockNumber uint64
}

const (
	sepoliaBscTestnet = "sepolia-bsctestnet"
	local             = "local"
)

//nolint:gomnd
var (
	// the vault and bridge addresses change with every redeploy, they are set through
	// Etherman.ChainA.SettlementAddr, Etherman.ChainA.OriginAddr and Etherman.ChainB.SettlementAddr
	sepoliaBscTestnetConfig = NetworkConfig{
		ChainA: NetworkChain{
			Name:    "sepolia",
			ChainID: 11155111,
		},
		ChainB: NetworkChain{
			Name:       "bsc-testnet",
			ChainID:    97,
			OriginAddr: common.HexToAddress("0xD78681f750eA8F71A833b2e0d9d23825B042e630"),
		},
	}
	// two hardhat nodes, each with the contracts deployed first by the default account
	localConfig = NetworkConfig{
		ChainA: NetworkChain{
			Name:           "local-a",
			ChainID:        31337,
			SettlementAddr: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
			OriginAddr:     common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
			GenBlockNumber: 1,
		},
		ChainB: NetworkChain{
			Name:           "local-b",
			ChainID:        31338,
			SettlementAddr: common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
			OriginAddr:     common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
			GenBlockNumber: 1,
		},
	}
)

func (cfg *Config) loadNetworkConfig(network string) error {
	switch network {
	case sepoliaBscTestnet:
		log.Debug("Sepolia and BSC testnet networks selected")
		cfg.NetworkConfig = sepoliaBscTestnetConfig
	case local:
		log.Debug("Local networks selected")
		cfg.NetworkConfig = localConfig
	default:
		return fmt.Errorf("unknown network %q, use %s or %s", network, sepoliaBscTestnet, local)
	}
	return nil
}

// applyNetworkConfig fills the chain settings left empty by the config file and environment
func (cfg *Config) applyNetworkConfig() {
	apply := func(n NetworkChain, name *string, chainID *uint64, settlement, origin *common.Address, genBlock *uint64) {
		if *name == "" {
			*name = n.Name
		}
		if *chainID == 0 {
			*chainID = n.ChainID
		}
		if *settlement == (common.Address{}) {
			*settlement = n.SettlementAddr
		}
		if *origin == (common.Address{}) {
			*origin = n.OriginAddr
		}
		if *genBlock == 0 {
			*genBlock = n.GenBlockNumber
		}
	}
	a, b := &cfg.Etherman.ChainA, &cfg.Etherman.ChainB
	apply(cfg.NetworkConfig.ChainA, &a.Name, &a.ChainID, &a.SettlementAddr, &a.OriginAddr, &cfg.Synchronizer.ChainA.GenBlockNumber)
	apply(cfg.NetworkConfig.ChainB, &b.Name, &b.ChainID, &b.SettlementAddr, &b.OriginAddr, &cfg.Synchronizer.ChainB.GenBlockNumber)
}
