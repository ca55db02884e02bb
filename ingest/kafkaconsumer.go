package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/IBM/sarama"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/messagepush"
	"github.com/lockburn/bridge-relayer/utils/gerror"
	pkgerrors "github.com/pkg/errors"
)

const (
	maxRetries   = 5
	retryBackoff = 3 * time.Second
)

// KafkaConsumer provides the interface to consume transfer payloads from kafka
type KafkaConsumer interface {
	Start(ctx context.Context)
	Close() error
}

type kafkaConsumerImpl struct {
	topics  []string
	client  sarama.ConsumerGroup
	handler sarama.ConsumerGroupHandler
}

// NewKafkaConsumer joins the consumer group of the transfer topics
func NewKafkaConsumer(cfg KafkaConfig, ingestor *Ingestor) (KafkaConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = cfg.InitialOffset

	if err := messagepush.ApplySASL(config, cfg.Username, cfg.Password, cfg.RootCAPath); err != nil {
		return nil, pkgerrors.Wrap(err, "Kafka consumer")
	}

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroupID, config)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "kafka consumer group init error")
	}

	handler := NewMessageHandler(ingestor, cfg)
	return &kafkaConsumerImpl{
		topics:  handler.topics(),
		client:  client,
		handler: handler,
	}, nil
}

func (c *kafkaConsumerImpl) Start(ctx context.Context) {
	log.Debug("starting kafka consumer")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		log.Debugf("start consume")
		err := c.client.Consume(ctx, c.topics, c.handler)
		if err != nil {
			log.Errorf("kafka consumer error: %v", err)
			return
		}
		if err = ctx.Err(); err != nil {
			log.Infof("kafka consumer ctx done: %v", err)
			return
		}
	}
}

func (c *kafkaConsumerImpl) Close() error {
	log.Debug("closing kafka consumer...")
	return c.client.Close()
}

// MessageHandler implements sarama.ConsumerGroupHandler, it settles the transfer carried by each message
type MessageHandler struct {
	ingestor   *Ingestor
	directions map[string]etherman.Direction
	backoff    time.Duration
}

// NewMessageHandler maps each configured topic to its direction
func NewMessageHandler(ingestor *Ingestor, cfg KafkaConfig) *MessageHandler {
	directions := make(map[string]etherman.Direction)
	if cfg.LockTopic != "" {
		directions[cfg.LockTopic] = etherman.DirectionLock
	}
	if cfg.BurnTopic != "" {
		directions[cfg.BurnTopic] = etherman.DirectionBurn
	}
	return &MessageHandler{ingestor: ingestor, directions: directions, backoff: retryBackoff}
}

func (h *MessageHandler) topics() []string {
	topics := make([]string, 0, len(h.directions))
	for topic := range h.directions {
		topics = append(topics, topic)
	}
	return topics
}

func (h *MessageHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *MessageHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *MessageHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				log.Info("message channel was closed")
				return nil
			}
			log.Infof("message received topic[%v] partition[%v] offset[%v]", message.Topic, message.Partition, message.Offset)

			// Retry for 5 times, if still fails, ignore this message
			for i := 0; i < maxRetries; i++ {
				err := h.handleMessage(session.Context(), message)
				if err == nil || !retryable(err) {
					if err != nil {
						log.Errorf("dropping kafka message topic[%v] offset[%v]: %v", message.Topic, message.Offset, err)
					}
					break
				}
				log.Errorf("handle kafka message error[%v] retryCnt[%v]", err, i)
				select {
				case <-session.Context().Done():
					return nil
				case <-time.After(h.backoff):
				}
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *MessageHandler) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	direction, found := h.directions[message.Topic]
	if !found {
		return pkgerrors.Wrapf(gerror.ErrUnknownDirection, "topic %s", message.Topic)
	}
	task, err := h.ingestor.SubmitRaw(ctx, direction, message.Value)
	if err != nil {
		return err
	}
	log.Infof("kafka transfer %s ended %s", task.ID().String(), task.State)
	return nil
}

// retryable reports whether submitting the same message again may succeed
func retryable(err error) bool {
	switch {
	case errors.Is(err, gerror.ErrValidation),
		errors.Is(err, gerror.ErrUnknownDirection),
		errors.Is(err, gerror.ErrTaskConflict),
		errors.Is(err, gerror.ErrTaskInProgress),
		errors.Is(err, gerror.ErrTaskNotRetryable):
		return false
	}
	return true
}
