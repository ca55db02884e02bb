package config

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lockburn/bridge-relayer/bridgectrl"
	"github.com/lockburn/bridge-relayer/db"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/ingest"
	"github.com/lockburn/bridge-relayer/messagepush"
	"github.com/lockburn/bridge-relayer/metrics"
	"github.com/lockburn/bridge-relayer/redisstorage"
	"github.com/lockburn/bridge-relayer/sequencer"
	"github.com/lockburn/bridge-relayer/server"
	"github.com/lockburn/bridge-relayer/synchronizer"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix = "RELAYER"

// Config struct
type Config struct {
	Log                 log.Config
	Database            db.Config
	Etherman            etherman.Config
	BridgeController    bridgectrl.Config
	Sequencer           sequencer.Config
	Synchronizer        synchronizer.Config
	Server              server.Config
	NATS                ingest.NATSConfig
	KafkaConsumer       ingest.KafkaConfig
	MessagePushProducer messagepush.Config
	Redis               redisstorage.Config
	Metrics             metrics.Config
	NetworkConfig
}

// Load loads the configuration
func Load(configFilePath string, network string) (*Config, error) {
	var cfg Config
	v := viper.New()
	v.SetConfigType("toml")

	err := v.ReadConfig(bytes.NewBuffer([]byte(DefaultValues)))
	if err != nil {
		return nil, err
	}
	if configFilePath != "" {
		dirName, fileName := filepath.Split(configFilePath)

		fileExtension := strings.TrimPrefix(filepath.Ext(fileName), ".")
		fileNameWithoutExtension := strings.TrimSuffix(fileName, "."+fileExtension)

		v.AddConfigPath(dirName)
		v.SetConfigName(fileNameWithoutExtension)
		v.SetConfigType(fileExtension)
		err = v.MergeInConfig()
		if err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				log.Infof("error reading config file: %v", err)
				return nil, err
			}
			log.Infof("config file not found")
		}
	}
	v.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.SetEnvPrefix(envPrefix)

	err = v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, err
	}

	if v.IsSet("NetworkConfig") && network != "" {
		return nil, errors.New("network details are provided in the config file (the [NetworkConfig] section) and as a flag (the --network or -n), configure it only once")
	}
	if network != "" {
		if err := cfg.loadNetworkConfig(network); err != nil {
			return nil, err
		}
	}
	cfg.applyNetworkConfig()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks the settings every component relies on
func (cfg *Config) validate() error {
	a, b := cfg.Etherman.ChainA, cfg.Etherman.ChainB
	if a.ChainID == 0 || b.ChainID == 0 {
		return errors.New("Etherman.ChainA.ChainID and Etherman.ChainB.ChainID are required")
	}
	if a.ChainID == b.ChainID {
		return fmt.Errorf("both chains use chain id %d", a.ChainID)
	}
	for _, c := range []struct {
		section string
		chain   etherman.ChainConfig
	}{{"ChainA", a}, {"ChainB", b}} {
		if c.chain.URL == "" {
			return fmt.Errorf("Etherman.%s.URL is required", c.section)
		}
		if c.chain.SettlementAddr == (common.Address{}) || c.chain.OriginAddr == (common.Address{}) {
			return fmt.Errorf("Etherman.%s.SettlementAddr and Etherman.%s.OriginAddr are required", c.section, c.section)
		}
	}
	if cfg.BridgeController.LeafHashRounds != 1 && cfg.BridgeController.LeafHashRounds != 2 {
		return fmt.Errorf("BridgeController.LeafHashRounds must be 1 or 2, got %d", cfg.BridgeController.LeafHashRounds)
	}
	return nil
}
