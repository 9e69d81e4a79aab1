package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/config"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

// sender writes one keyed message to the topic.
type sender interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key, value []byte) error
}

type wbfSender struct {
	p *wbfkafka.Producer
}

func (s wbfSender) SendWithRetry(ctx context.Context, strategy retry.Strategy, key, value []byte) error {
	return s.p.SendWithRetry(ctx, strategy, key, value)
}

// Producer publishes result events to Kafka.
type Producer struct {
	Client   *wbfkafka.Producer
	sender   sender
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer for the configured topic.
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	return &Producer{
		Client:   producer,
		sender:   wbfSender{producer},
		cfg:      cfg,
		strategy: s,
	}
}

// ResultRecorded serializes the event to JSON and sends it to Kafka.
// The run id is the message key so events of one run stay ordered.
func (p *Producer) ResultRecorded(ctx context.Context, ev model.ResultRecorded) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal result event: %w", err)
	}

	key := []byte(ev.RunID.String())

	if err = p.sender.SendWithRetry(ctx, p.strategy, key, data); err != nil {
		return fmt.Errorf("failed to send result event: %w", err)
	}

	return nil
}
