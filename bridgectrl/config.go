package bridgectrl

// Config is the accumulator config
type Config struct {
	// LeafHashRounds is how many times the encoded transfer tuple is hashed to form a leaf.
	// It must match the destination verifier: 2 hashes the digest once more, 1 uses the digest.
	LeafHashRounds uint8 `mapstructure:"LeafHashRounds"`
	// QueueSize is the capacity of the insert queue of each direction
	QueueSize int `mapstructure:"QueueSize"`
}
