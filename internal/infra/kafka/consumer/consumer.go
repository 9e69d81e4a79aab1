package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/config"
)

const fetchBackoff = 500 * time.Millisecond

// handler defines the interface for handling one Kafka message.
type handler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// source fetches and commits messages of the subscribed topic.
type source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

type wbfSource struct {
	c *wbfkafka.Consumer
}

func (s wbfSource) Fetch(ctx context.Context) (kafka.Message, error) {
	return s.c.Fetch(ctx)
}

func (s wbfSource) Commit(ctx context.Context, msg kafka.Message) error {
	return s.c.Commit(ctx, msg)
}

// Consumer reads messages of one topic and passes them to a handler.
type Consumer struct {
	Client   *wbfkafka.Consumer
	source   source
	handler  handler
	cfg      *config.Kafka
	strategy retry.Strategy
}

// New creates a new Consumer for the configured topic and group.
func New(cfg *config.Kafka, s retry.Strategy, h handler) *Consumer {
	consumer := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	return &Consumer{
		Client:   consumer,
		source:   wbfSource{consumer},
		handler:  h,
		cfg:      cfg,
		strategy: s,
	}
}

// Consume continuously fetches messages from Kafka, processes them using the handler,
// and commits offsets after successful processing. The handler is retried with the
// consumer's strategy; a message that still fails is logged and skipped, and the
// reader moves past it without committing, so it is only redelivered after the
// group restarts from its last committed offset. It stops gracefully on context cancellation.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().
		Str("topic", c.cfg.Topic).
		Msg("starting consumer")

	for {
		if ctx.Err() != nil {
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return
		}

		var msg kafka.Message
		err := retry.Do(func() error {
			var fetchErr error
			msg, fetchErr = c.source.Fetch(ctx)
			return fetchErr
		}, c.strategy)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			zlog.Logger.Err(err).Msg("failed to fetch message")
			time.Sleep(fetchBackoff)
			continue
		}

		err = retry.Do(func() error {
			return c.handler.Handle(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).
				Int64("offset", msg.Offset).
				Str("message", string(msg.Value)).
				Msg("failed to handle message after retries, skipping")
			continue
		}

		err = retry.Do(func() error {
			return c.source.Commit(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to commit message after retries")
			continue
		}

		zlog.Logger.Debug().
			Int64("offset", msg.Offset).
			Msg("message handled successfully")
	}
}
