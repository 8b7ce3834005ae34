package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(ctx context.Context, ev OwnOrderEvent) error
	Close() error
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// KafkaPublisher writes events keyed by order hash so every update of one
// order lands on the same partition in order.
type KafkaPublisher struct {
	w     *kafka.Writer
	topic string
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errKafkaNotConfigured
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	wr := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
	}
	return &KafkaPublisher{w: wr, topic: cfg.Topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev OwnOrderEvent) error {
	if p == nil || p.w == nil {
		return errors.New("publisher not initialized")
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderHash),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID)},
			{Key: "session_id", Value: []byte(ev.SessionID)},
		},
		Time: ev.Timestamp,
	})
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct {
	Log func(ev OwnOrderEvent)
}

func (p LogPublisher) Publish(_ context.Context, ev OwnOrderEvent) error {
	if p.Log != nil {
		p.Log(ev)
	}
	return nil
}

func (LogPublisher) Close() error { return nil }
