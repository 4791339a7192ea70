// Package events publishes stock notifications after ledger transactions commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/inventariopro/inventariopro/internal/config"
	"go.uber.org/zap"
)

const (
	TopicStockTransferred = "stock.transferred"
	TopicRoomReplicated   = "room.replicated"
)

const (
	dialAttempts = 5
	dialBackoff  = 3 * time.Second
)

// Publisher sends a notification keyed by key on topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Envelope wraps every payload sent to the broker.
type Envelope struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// StockTransferred is emitted after a global to room transfer commits.
type StockTransferred struct {
	RoomID         uint  `json:"room_id"`
	ProductID      uint  `json:"product_id"`
	Quantity       int64 `json:"quantity"`
	GlobalQuantity int64 `json:"global_quantity"`
	RoomQuantity   int64 `json:"room_quantity"`
}

// RoomReplicated is emitted after a room is cloned into another event.
type RoomReplicated struct {
	SourceRoomID  uint  `json:"source_room_id"`
	NewRoomID     uint  `json:"new_room_id"`
	TargetEventID uint  `json:"target_event_id"`
	Lines         int   `json:"lines"`
	Units         int64 `json:"units"`
}

// Noop discards notifications. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }

// KafkaPublisher sends JSON envelopes through a sarama SyncProducer.
type KafkaPublisher struct {
	producer    sarama.SyncProducer
	topicPrefix string
	log         *zap.Logger
}

func NewKafkaPublisher(producer sarama.SyncProducer, topicPrefix string, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, topicPrefix: topicPrefix, log: log}
}

// ProducerConfig returns the sarama config used for notifications.
func ProducerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	return cfg
}

// Dial connects to the configured brokers, retrying while Kafka starts.
func Dial(cfg config.KafkaConfig, log *zap.Logger) (*KafkaPublisher, error) {
	var producer sarama.SyncProducer
	var err error
	for i := 1; i <= dialAttempts; i++ {
		producer, err = sarama.NewSyncProducer(cfg.Brokers, ProducerConfig(cfg.ClientID))
		if err == nil {
			log.Info("kafka producer initialized", zap.Strings("brokers", cfg.Brokers))
			return NewKafkaPublisher(producer, cfg.TopicPrefix, log), nil
		}
		log.Warn("waiting for kafka", zap.Int("attempt", i), zap.Error(err))
		time.Sleep(dialBackoff)
	}
	return nil, fmt.Errorf("kafka producer after %d attempts: %w", dialAttempts, err)
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := Envelope{
		ID:         uuid.NewString(),
		Type:       topic,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topicPrefix + topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(data),
		Timestamp: env.OccurredAt,
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s event: %w", topic, err)
	}
	p.log.Debug("published event",
		zap.String("topic", msg.Topic),
		zap.String("event_id", env.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }
