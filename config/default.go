package config

// DefaultValues is the default configuration
const DefaultValues = `
[Log]
Environment = "development"
Level = "debug"
Outputs = ["stdout"]

[Database]
Database = "postgres"
User = "relayer_user"
Password = "relayer_password"
Name = "relayer_db"
Host = "localhost"
Port = "5432"
MaxConns = 20

[Etherman]
    [Etherman.ChainA]
    Name = ""
    URL = "http://localhost:8545"
    ChainID = 0
    SettlementAddr = "0x0000000000000000000000000000000000000000"
    OriginAddr = "0x0000000000000000000000000000000000000000"
    ConfirmationTimeout = "3m"
    PollInterval = "3s"
    ProcessedLookup = true
    GasLimitMargin = 20
        [Etherman.ChainA.Keystore]
        Path = ""
        Password = ""
    [Etherman.ChainB]
    Name = ""
    URL = "http://localhost:8546"
    ChainID = 0
    SettlementAddr = "0x0000000000000000000000000000000000000000"
    OriginAddr = "0x0000000000000000000000000000000000000000"
    ConfirmationTimeout = "3m"
    PollInterval = "3s"
    ProcessedLookup = true
    GasLimitMargin = 20
        [Etherman.ChainB.Keystore]
        Path = ""
        Password = ""

[BridgeController]
LeafHashRounds = 2
QueueSize = 256

[Sequencer]
FrequencyToMonitorTasks = "30s"
TaskLockTTL = "10m"
AutoRetryTimeouts = false
MaxAutoRetries = 3
MaxRootRepublish = 3

[Synchronizer]
SyncInterval = "10s"
SyncChunkSize = 1000
ConfirmationDepth = 12
RelayerURL = ""
RelayerTimeout = "10m"
    [Synchronizer.ChainA]
    Enabled = false
    GenBlockNumber = 0
    [Synchronizer.ChainB]
    Enabled = false
    GenBlockNumber = 0

[Server]
HTTPPort = "8080"
ReadTimeout = "10s"
WriteTimeout = "10m"
AllowOrigins = []
AdminToken = ""
CacheSize = 10000

[NATS]
Enabled = false
URL = "nats://localhost:4222"
LockSubject = "relayer.transfers.lock"
BurnSubject = "relayer.transfers.burn"
QueueGroup = "relayer"

[KafkaConsumer]
Enabled = false
Brokers = ["localhost:9092"]
LockTopic = "relayer.transfers.lock"
BurnTopic = "relayer.transfers.burn"
ConsumerGroupID = "relayer"
InitialOffset = -1
Username = ""
Password = ""
RootCAPath = ""

[MessagePushProducer]
Enabled = false
UseFakeProducer = false
Brokers = ["localhost:9092"]
Topic = "relayer.task.status"
PushKey = "relayer"
Username = ""
Password = ""
RootCAPath = ""

[Redis]
Enabled = false
IsClusterMode = false
Addrs = ["localhost:6379"]
Username = ""
Password = ""
DB = 0
KeyPrefix = "relayer:"
StatusTTL = "24h"

[Metrics]
Enabled = false
Port = "9091"
Endpoint = "/metrics"
Env = ""
`
