package client

// Config is a client config
type Config struct {
	RelayerURL string `mapstructure:"RelayerURL"`
	AdminToken string `mapstructure:"AdminToken"`
}
