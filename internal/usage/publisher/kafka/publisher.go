// Package kafka streams usage records to a Kafka topic for downstream
// billing pipelines.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"nidapi/internal/usage/models"
)

const defaultPublishTimeout = 2 * time.Second

// Producer is the subset of *kgo.Client used for publishing.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Publisher emits each usage record as a JSON message keyed by API key ID,
// so records for one key stay ordered within a partition.
type Publisher struct {
	producer Producer
	topic    string
	timeout  time.Duration
}

type Option func(*Publisher)

// WithTimeout bounds each publish call.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.timeout = d
	}
}

func New(producer Producer, topic string, opts ...Option) (*Publisher, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	p := &Publisher{producer: producer, topic: topic, timeout: defaultPublishTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Dial connects to brokers and makes sure the usage topic exists.
func Dial(ctx context.Context, brokers []string, topic string, opts ...Option) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := EnsureTopic(ctx, kadm.NewClient(client), topic); err != nil {
		client.Close()
		return nil, err
	}
	return New(client, topic, opts...)
}

// TopicCreator is the subset of *kadm.Client used for topic bootstrap.
type TopicCreator interface {
	CreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) (kadm.CreateTopicResponses, error)
}

// EnsureTopic creates topic with broker defaults. An existing topic is fine.
func EnsureTopic(ctx context.Context, admin TopicCreator, topic string) error {
	resp, err := admin.CreateTopics(ctx, -1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish sends r synchronously and returns the broker's verdict.
func (p *Publisher) Publish(ctx context.Context, r *models.Record) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(r.APIKeyID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "client_kind", Value: []byte(r.ClientKind)},
		},
		Timestamp: r.CreatedAt,
	}
	if err := p.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("publish usage record: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.producer.Close()
}
