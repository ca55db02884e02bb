package sequencer

import "github.com/0xPolygonHermez/zkevm-node/config/types"

// Config is the settlement sequencer config
type Config struct {
	// FrequencyToMonitorTasks is how often interrupted tasks are looked up and resumed
	FrequencyToMonitorTasks types.Duration `mapstructure:"FrequencyToMonitorTasks"`
	// TaskLockTTL bounds how long a replica may hold the shared lock of a task
	TaskLockTTL types.Duration `mapstructure:"TaskLockTTL"`
	// AutoRetryTimeouts retries tasks whose outcome is indeterminate after reconciling them on-chain
	AutoRetryTimeouts bool `mapstructure:"AutoRetryTimeouts"`
	// MaxAutoRetries is the number of automatic retries of a timed out task
	MaxAutoRetries uint `mapstructure:"MaxAutoRetries"`
	// MaxRootRepublish is how many times a task publishes again when the destination root
	// no longer covers its leaf at settlement time
	MaxRootRepublish int `mapstructure:"MaxRootRepublish"`
}
