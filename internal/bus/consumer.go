package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/swapscan/backend/internal/metrics"
)

// Handler processes one envelope. brokerTime is the broker-assigned message
// timestamp, used as the age-gate fallback. A returned error is logged and
// the consumer advances; a single bad message never stalls the group.
type Handler func(ctx context.Context, env *Envelope, brokerTime time.Time) error

// Consumer wraps a sarama consumer group over the transactions topic.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler Handler
}

// NewConsumer joins the consumer group. New groups start at the newest
// offset: the bus buffers for lagging members, not for newcomers.
func NewConsumer(brokers []string, clientID, groupID, topic string, handler Handler) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("join consumer group %s: %w", groupID, err)
	}
	return &Consumer{group: group, topic: topic, handler: handler}, nil
}

// Run consumes until ctx is canceled. Rebalances re-enter Consume; errors
// from the group are logged and retried with a short pause.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			slog.Warn("consumer group error", "error", err)
		}
	}()

	claims := &claimHandler{handler: c.handler}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, claims); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("consume session ended with error, rejoining", "error", err)
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close leaves the group.
func (c *Consumer) Close() error { return c.group.Close() }

// claimHandler adapts Handler to sarama's session interface.
type claimHandler struct {
	handler Handler
}

func (h *claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		metrics.MessagesConsumed.Inc()

		env, err := UnmarshalEnvelope(msg.Value)
		if err != nil {
			slog.Warn("dropping malformed bus message",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			metrics.MessagesSkipped.WithLabelValues("malformed").Inc()
			session.MarkMessage(msg, "")
			continue
		}

		if err := h.handler(session.Context(), env, msg.Timestamp); err != nil {
			// Absorb: the message is marked either way; the bus is not a
			// retry queue for evaluator-side failures.
			slog.Error("message handling failed", "txHash", env.TxHash, "error", err)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
