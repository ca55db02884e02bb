package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/lockburn/bridge-relayer/bridgectrl"
	"github.com/lockburn/bridge-relayer/config"
	"github.com/lockburn/bridge-relayer/db"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/ingest"
	"github.com/lockburn/bridge-relayer/messagepush"
	"github.com/lockburn/bridge-relayer/metrics"
	"github.com/lockburn/bridge-relayer/redisstorage"
	"github.com/lockburn/bridge-relayer/sequencer"
	"github.com/lockburn/bridge-relayer/server"
	"github.com/lockburn/bridge-relayer/synchronizer"
	"github.com/urfave/cli/v2"
)

func runAPI(ctx *cli.Context) error {
	return startServer(ctx, withAPI())
}

func runObserver(ctx *cli.Context) error {
	return startServer(ctx, withObservers())
}

func runAll(ctx *cli.Context) error {
	return startServer(ctx, withAPI(), withObservers())
}

type runOption struct {
	runAPI       bool
	runObservers bool
}

type runOptionFunc func(opt *runOption)

// withAPI serves the webhook and starts the NATS and Kafka consumers that are enabled
func withAPI() runOptionFunc {
	return func(opt *runOption) {
		opt.runAPI = true
	}
}

// withObservers starts the synchronizers of the chains enabled in the config
func withObservers() runOptionFunc {
	return func(opt *runOption) {
		opt.runObservers = true
	}
}

// closers run in reverse order on shutdown
type closers []func() error

func (c *closers) add(f func() error) {
	*c = append(*c, f)
}

func (c closers) close() error {
	var result *multierror.Error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func startServer(cliCtx *cli.Context, opts ...runOptionFunc) error {
	opt := &runOption{}
	for _, f := range opts {
		f(opt)
	}

	c, err := initCommon(cliCtx)
	if err != nil {
		return err
	}

	err = db.RunMigrations(c.Database)
	if err != nil {
		log.Error(err)
		return err
	}

	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cs closers
	defer func() {
		if err := cs.close(); err != nil {
			log.Errorf("shutdown error: %v", err)
		}
	}()

	storage, err := db.NewStorage(c.Database)
	if err != nil {
		log.Error(err)
		return err
	}
	cs.add(func() error {
		storage.Close()
		return nil
	})

	// Start metrics
	if c.Metrics.Enabled {
		go metrics.StartMetricsHttpServer(ctx, c.Metrics)
	}

	chainA, chainB, err := newEthermans(ctx, c.Etherman)
	if err != nil {
		log.Error(err)
		return err
	}

	var redisStorage redisstorage.RedisStorage
	if c.Redis.Enabled {
		redisStorage, err = redisstorage.NewRedisStorage(c.Redis)
		if err != nil {
			log.Error(err)
			return err
		}
	}

	var messagePushProducer messagepush.KafkaProducer
	if c.MessagePushProducer.Enabled {
		log.Infof("message push producer's switch is open, so init producer!")
		messagePushProducer, err = messagepush.NewKafkaProducer(c.MessagePushProducer)
		if err != nil {
			log.Error(err)
			return err
		}
		cs.add(messagePushProducer.Close)
	}

	// Only the api process owns the accumulators and the sequencer. Observers started on their
	// own forward what they read to it.
	var (
		bridgeController *bridgectrl.BridgeController
		seq              *sequencer.Sequencer
		relay            synchronizer.Relay
	)
	if opt.runAPI {
		bridgeController, err = bridgectrl.NewBridgeController(ctx, c.BridgeController, storage)
		if err != nil {
			log.Error(err)
			return err
		}
		seq, err = sequencer.NewSequencer(ctx, c.Sequencer, bridgeController, chainA, chainB, storage, taskLocker(redisStorage), taskPusher(messagePushProducer))
		if err != nil {
			log.Error(err)
			return err
		}
		go seq.Start(ctx)
		relay = seq
	} else if opt.runObservers {
		relay, err = synchronizer.NewRelayerForwarder(c.Synchronizer.RelayerURL, c.Synchronizer.RelayerTimeout.Duration)
		if err != nil {
			log.Error(err)
			return err
		}
		log.Infof("observers forward transfers to %s", c.Synchronizer.RelayerURL)
	}

	// ---------- Run chain observers ----------
	if opt.runObservers {
		for _, chain := range []struct {
			client *etherman.Client
			cfg    synchronizer.ChainConfig
		}{{chainA, c.Synchronizer.ChainA}, {chainB, c.Synchronizer.ChainB}} {
			if !chain.cfg.Enabled {
				log.Infof("chain %s: observer disabled", chain.client.Name())
				continue
			}
			sy, err := synchronizer.NewSynchronizer(ctx, storage, relay, chain.client, chain.cfg.GenBlockNumber, c.Synchronizer)
			if err != nil {
				log.Error(err)
				return err
			}
			go func() {
				if err := sy.Sync(); err != nil {
					log.Fatal(err)
				}
			}()
			cs.add(func() error {
				sy.Stop()
				return nil
			})
		}
	}

	// ---------- Run API and push consumers ----------
	if opt.runAPI {
		ingestor := ingest.NewIngestor(seq, ingest.Routes(c.Etherman))

		if c.NATS.Enabled {
			subscriber, err := ingest.NewNATSSubscriber(c.NATS, ingestor)
			if err != nil {
				log.Error(err)
				return err
			}
			if err := subscriber.Start(ctx); err != nil {
				log.Error(err)
				return err
			}
			cs.add(subscriber.Close)
		}

		if c.KafkaConsumer.Enabled {
			log.Debugf("start initializing kafka consumer...")
			kafkaConsumer, err := ingest.NewKafkaConsumer(c.KafkaConsumer, ingestor)
			if err != nil {
				log.Error(err)
				return err
			}
			log.Debugf("finish initializing kafka consumer")
			go kafkaConsumer.Start(ctx)
			cs.add(kafkaConsumer.Close)
		}

		relayerService := server.NewRelayerService(c.Server, ingestor, seq, bridgeController, storage, server.Contracts(c.Etherman))
		if redisStorage != nil {
			relayerService.WithStatusCache(redisStorage)
		}
		go func() {
			if err := server.RunServer(ctx, c.Server, relayerService); err != nil {
				log.Errorf("http server error: %v", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down the relayer")
	return nil
}

// taskLocker keeps a disabled redis storage a nil interface
func taskLocker(s redisstorage.RedisStorage) sequencer.TaskLocker {
	if s == nil {
		return nil
	}
	return s
}

func taskPusher(p messagepush.KafkaProducer) sequencer.TaskPusher {
	if p == nil {
		return nil
	}
	return p
}

func initCommon(ctx *cli.Context) (*config.Config, error) {
	configFilePath := ctx.String(flagCfg)
	network := ctx.String(flagNetwork)

	c, err := config.Load(configFilePath, network)
	if err != nil {
		return nil, err
	}
	setupLog(c.Log)
	return c, nil
}

func setupLog(c log.Config) {
	log.Init(c)
	if c.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
}

func newEthermans(ctx context.Context, c etherman.Config) (*etherman.Client, *etherman.Client, error) {
	chainA, err := etherman.NewClient(ctx, etherman.ChainA, c.ChainA)
	if err != nil {
		return nil, nil, err
	}
	chainB, err := etherman.NewClient(ctx, etherman.ChainB, c.ChainB)
	if err != nil {
		return nil, nil, err
	}
	return chainA, chainB, nil
}

func migrate(cliCtx *cli.Context) error {
	c, err := initCommon(cliCtx)
	if err != nil {
		return err
	}
	if cliCtx.Bool(flagDown) {
		log.Info("reverting database migrations")
		return db.RunMigrationsDown(c.Database)
	}
	log.Info("applying database migrations")
	return db.RunMigrations(c.Database)
}
