package bus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/swapscan/backend/internal/metrics"
)

// Producer publishes envelopes keyed by transaction hash. The underlying
// sarama client is created lazily on first publish and is safe for
// concurrent use; Close is idempotent.
type Producer struct {
	brokers  []string
	clientID string

	mu       sync.Mutex
	producer sarama.SyncProducer
	closed   bool
}

// NewProducer configures a producer; no connection happens until the first
// Publish.
func NewProducer(brokers []string, clientID string) *Producer {
	return &Producer{brokers: brokers, clientID: clientID}
}

func (p *Producer) get() (sarama.SyncProducer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("bus producer is closed")
	}
	if p.producer != nil {
		return p.producer, nil
	}

	cfg := sarama.NewConfig()
	cfg.ClientID = p.clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	// Hash partitioning on the key keeps all sub-actions of one
	// transaction in one partition, preserving command order.
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(p.brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	p.producer = producer
	slog.Info("kafka producer connected", "brokers", p.brokers)
	return producer, nil
}

// Publish sends one envelope to the topic with message key = txHash.
func (p *Producer) Publish(topic string, env *Envelope) error {
	producer, err := p.get()
	if err != nil {
		return err
	}
	payload, err := env.Marshal()
	if err != nil {
		return err
	}
	_, _, err = producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(env.TxHash),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", env.TxHash, topic, err)
	}
	metrics.MessagesPublished.WithLabelValues(topic).Inc()
	return nil
}

// PublishRaw sends an arbitrary payload with an explicit key. Used for the
// opportunities topic, whose messages are verdict records, not envelopes.
func (p *Producer) PublishRaw(topic, key string, payload []byte) error {
	producer, err := p.get()
	if err != nil {
		return err
	}
	_, _, err = producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", key, topic, err)
	}
	metrics.MessagesPublished.WithLabelValues(topic).Inc()
	return nil
}

// Close shuts the producer down; in-flight sends complete first.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.producer == nil {
		return nil
	}
	err := p.producer.Close()
	p.producer = nil
	return err
}
