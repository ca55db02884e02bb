package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/nats-io/nats.go"
)

const natsConnectTimeout = 10 * time.Second

// Reply is sent back on the reply subject of a request
type Reply struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Task    *types.View `json:"task,omitempty"`
}

type natsConn interface {
	QueueSubscribe(subj, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
	Drain() error
}

// NATSSubscriber settles the transfer payloads published on the direction subjects
type NATSSubscriber struct {
	conn     natsConn
	ingestor *Ingestor
	subjects map[string]etherman.Direction
	queue    string

	wg sync.WaitGroup
}

// NewNATSSubscriber connects to the NATS server
func NewNATSSubscriber(cfg NATSConfig, ingestor *Ingestor) (*NATSSubscriber, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(natsConnectTimeout),
		nats.ReconnectWait(5*time.Second), //nolint:gomnd
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warnf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS failed: %w", err)
	}
	return newNATSSubscriber(conn, cfg, ingestor), nil
}

func newNATSSubscriber(conn natsConn, cfg NATSConfig, ingestor *Ingestor) *NATSSubscriber {
	subjects := make(map[string]etherman.Direction)
	if cfg.LockSubject != "" {
		subjects[cfg.LockSubject] = etherman.DirectionLock
	}
	if cfg.BurnSubject != "" {
		subjects[cfg.BurnSubject] = etherman.DirectionBurn
	}
	return &NATSSubscriber{conn: conn, ingestor: ingestor, subjects: subjects, queue: cfg.QueueGroup}
}

// Start subscribes to the direction subjects. Messages are settled until ctx is done.
func (n *NATSSubscriber) Start(ctx context.Context) error {
	for subject, direction := range n.subjects {
		direction := direction
		_, err := n.conn.QueueSubscribe(subject, n.queue, func(msg *nats.Msg) {
			n.wg.Add(1)
			go func() {
				defer n.wg.Done()
				n.handle(ctx, direction, msg)
			}()
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		log.Infof("NATS subscribed to %s for %s transfers", subject, direction)
	}
	return nil
}

func (n *NATSSubscriber) handle(ctx context.Context, direction etherman.Direction, msg *nats.Msg) {
	log.Infof("NATS message received subject[%s] size[%d]", msg.Subject, len(msg.Data))
	task, err := n.ingestor.SubmitRaw(ctx, direction, msg.Data)
	reply := Reply{Success: err == nil && task.State == types.TaskStateSettled}
	if task != nil {
		view := task.View()
		reply.Task = &view
	}
	if err != nil {
		log.Errorf("NATS %s transfer failed: %v", direction, err)
		reply.Error = err.Error()
	}
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		log.Errorf("NATS reply encoding failed: %v", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Errorf("NATS reply failed: %v", err)
	}
}

// Close drains the subscriptions and waits for in flight settlements
func (n *NATSSubscriber) Close() error {
	err := n.conn.Drain()
	n.wg.Wait()
	return err
}
