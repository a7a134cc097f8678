// Package worker consumes counter-chain tip notifications from Redis
// Streams and wakes the matured-deposit sync loop.
package worker

import (
	"context"
	"encoding/binary"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

// Poker is the sync loop surface the worker drives.
type Poker interface {
	Poke()
}

// Config configures the worker.
type Config struct {
	RedisClient   redis.UniversalClient
	Loop          Poker
	Topic         string
	ConsumerGroup string
}

// Worker consumes matured-tip heights from Redis Streams and pokes the
// sync loop.
type Worker struct {
	router *message.Router
	loop   Poker
	topic  string
}

// New creates a new Worker.
func New(cfg Config) (*Worker, error) {
	logger := watermill.NewSlogLogger(nil)

	sub, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client:        cfg.RedisClient,
			ConsumerGroup: cfg.ConsumerGroup,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		router: router,
		loop:   cfg.Loop,
		topic:  cfg.Topic,
	}

	router.AddNoPublisherHandler(
		"wake-sync-loop",
		cfg.Topic,
		sub,
		w.handleTip,
	)

	return w, nil
}

// handleTip processes a single tip notification.
func (w *Worker) handleTip(msg *message.Message) error {
	if len(msg.Payload) < 8 {
		slog.Warn("worker invalid payload",
			"msg_uuid", msg.UUID,
			"len", len(msg.Payload),
		)
		return nil // ack invalid messages to avoid infinite retry
	}

	height := binary.BigEndian.Uint64(msg.Payload[0:8])

	slog.Debug("matured tip notification",
		"height", height,
		"msg_uuid", msg.UUID,
	)

	// The cycle fetches from its own checkpoint; the height is advisory.
	w.loop.Poke()
	return nil
}

// Run starts the worker and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.router.Run(ctx)
}

// Close shuts the router down.
func (w *Worker) Close() error {
	return w.router.Close()
}
