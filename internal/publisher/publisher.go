// Package publisher announces governance and settlement events to redis
// streams for the downstream federation services (block assembler,
// withdrawal builder).
package publisher

import (
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/p3root/StratisFullNode/internal/voting"
	"github.com/redis/go-redis/v9"
)

// Publisher publishes federation events to Redis Streams.
type Publisher struct {
	pub         message.Publisher
	redisClient redis.UniversalClient
	eventsTopic string
	wakeupTopic string
}

// New creates a new Publisher.
func New(redisClient redis.UniversalClient, eventsTopic, wakeupTopic string) (*Publisher, error) {
	logger := watermill.NewSlogLogger(nil)

	pub, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		pub:         pub,
		redisClient: redisClient,
		eventsTopic: eventsTopic,
		wakeupTopic: wakeupTopic,
	}, nil
}

// pollExecutedEvent is the JSON payload announcing an applied poll.
type pollExecutedEvent struct {
	Event   string `json:"event"`
	VoteKey string `json:"voteKey"`
	Payload string `json:"payload"`
	Height  uint64 `json:"height"`
}

// depositsRecordedEvent is the JSON payload announcing a consumed matured
// block.
type depositsRecordedEvent struct {
	Event       string `json:"event"`
	BlockHeight uint64 `json:"blockHeight"`
	Conversions int    `json:"conversions"`
	Standard    int    `json:"standard"`
}

// PublishPollExecuted announces that a poll's effect was committed.
func (p *Publisher) PublishPollExecuted(data voting.VotingData, height uint64) {
	p.publishEvent(pollExecutedEvent{
		Event:   "poll_executed",
		VoteKey: data.Key.String(),
		Payload: data.Render(),
		Height:  height,
	})
}

// PublishDepositsRecorded announces that a matured counter-chain block was
// consumed.
func (p *Publisher) PublishDepositsRecorded(blockHeight uint64, conversions, standard int) {
	p.publishEvent(depositsRecordedEvent{
		Event:       "deposits_recorded",
		BlockHeight: blockHeight,
		Conversions: conversions,
		Standard:    standard,
	})
}

func (p *Publisher) publishEvent(event any) {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal event failed", "err", err)
		return
	}

	msgUUID := watermill.NewUUID()
	msg := message.NewMessage(msgUUID, payload)

	if err := p.pub.Publish(p.eventsTopic, msg); err != nil {
		slog.Error("redis publish failed",
			"topic", p.eventsTopic,
			"msg_uuid", msgUUID,
			"duration_ms", time.Since(start).Milliseconds(),
			"err", err,
		)
		return
	}

	slog.Debug("redis publish ok",
		"topic", p.eventsTopic,
		"msg_uuid", msgUUID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// PublishMaturedTip pushes a counter-chain tip height onto the wakeup
// stream so the sync loop starts a cycle without waiting out its delay.
func (p *Publisher) PublishMaturedTip(height uint64) error {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, height)

	msgUUID := watermill.NewUUID()
	msg := message.NewMessage(msgUUID, payload)

	if err := p.pub.Publish(p.wakeupTopic, msg); err != nil {
		slog.Error("redis publish failed",
			"topic", p.wakeupTopic,
			"height", height,
			"msg_uuid", msgUUID,
			"err", err,
		)
		return err
	}

	slog.Info("matured tip published", "height", height, "msg_uuid", msgUUID)
	return nil
}

// Close closes the publisher.
func (p *Publisher) Close() error {
	return p.pub.Close()
}
