package redisstorage

import "github.com/0xPolygonHermez/zkevm-node/config/types"

// Config stores the redis connection configs
type Config struct {
	// Enabled turns on the cross replica task lock and the status cache
	Enabled bool `mapstructure:"Enabled"`

	// If this is true, will use ClusterClient
	IsClusterMode bool `mapstructure:"IsClusterMode"`

	// Host:Port address
	Addrs []string `mapstructure:"Addrs"`

	// Username for ACL
	Username string `mapstructure:"Username"`

	// Password for ACL
	Password string `mapstructure:"Password"`

	// DB index
	DB int `mapstructure:"DB"`

	// KeyPrefix namespaces every key written by the relayer
	KeyPrefix string `mapstructure:"KeyPrefix"`

	// StatusTTL is how long a cached task status is kept
	StatusTTL types.Duration `mapstructure:"StatusTTL"`
}
