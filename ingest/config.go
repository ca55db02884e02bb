package ingest

// KafkaConfig handles the kafka consumer config
type KafkaConfig struct {
	Enabled bool `mapstructure:"Enabled"`

	// Brokers is the list of address of the kafka brokers
	Brokers []string `mapstructure:"Brokers"`

	// LockTopic and BurnTopic carry the payloads of each direction
	LockTopic string `mapstructure:"LockTopic"`
	BurnTopic string `mapstructure:"BurnTopic"`

	// ConsumerGroupID is the name of the consumer group
	ConsumerGroupID string `mapstructure:"ConsumerGroupID"`

	// InitialOffset is the offset to use if there's no previously committed offset
	// -1: Newest
	// -2: Oldest
	InitialOffset int64 `mapstructure:"InitialOffset"`

	// Username and Password are used for SASL_SSL authentication
	Username string `mapstructure:"Username"`
	Password string `mapstructure:"Password"`

	// RootCAPath points to the CA cert used for authentication
	RootCAPath string `mapstructure:"RootCAPath"`
}

// NATSConfig handles the NATS subscriber config
type NATSConfig struct {
	Enabled bool   `mapstructure:"Enabled"`
	URL     string `mapstructure:"URL"`

	// LockSubject and BurnSubject carry the payloads of each direction
	LockSubject string `mapstructure:"LockSubject"`
	BurnSubject string `mapstructure:"BurnSubject"`

	// QueueGroup spreads the messages over the relayer replicas
	QueueGroup string `mapstructure:"QueueGroup"`
}
