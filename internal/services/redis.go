package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"numbers-game-backend/internal/config"
	"numbers-game-backend/internal/metrics"
	"numbers-game-backend/internal/models"
)

// RedisService republishes game events on a pub/sub channel for consumers
// outside this process and backs the per-client bet rate limit.
type RedisService struct {
	client  *redis.Client
	ctx     context.Context
	channel string
	logger  *zap.Logger

	events chan *models.Message
}

func NewRedisService(cfg *config.Config, logger *zap.Logger) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	channel := cfg.RedisEventsChannel
	if channel == "" {
		channel = DefaultEventsChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisService{
		client:  client,
		ctx:     ctx,
		channel: channel,
		logger:  logger.Named("redis"),
		events:  make(chan *models.Message, eventQueueSize),
	}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) Channel() string {
	return s.channel
}

// Run publishes queued events until ctx is done.
func (s *RedisService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.events:
			s.publish(ctx, msg)
		}
	}
}

func (s *RedisService) publish(ctx context.Context, msg *models.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		metrics.RecordPublished(false)
		s.logger.Error("failed to marshal event", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	}

	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		metrics.RecordPublished(false)
		s.logger.Warn("failed to publish event", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	}
	metrics.RecordPublished(true)
}

// enqueue never blocks: the engine calls sinks from its critical section.
func (s *RedisService) enqueue(msg *models.Message) {
	select {
	case s.events <- msg:
	default:
		metrics.RecordPublished(false)
		s.logger.Warn("event queue full, dropping event", zap.String("type", string(msg.Type)))
	}
}

func (s *RedisService) OnRoundOpened(roundID int64, closesAt time.Time) {
	s.enqueue(models.RoundOpenedMessage(roundID, closesAt.UnixMilli()))
}

func (s *RedisService) OnRoundSettled(roundID int64, winningNumber int) {
	s.enqueue(models.RoundSettledMessage(roundID, winningNumber))
}

func (s *RedisService) OnWinnersAnnounced(roundID int64, winners []models.WinnerInfo) {
	s.enqueue(models.WinnersMessage(roundID, winners))
}

func (s *RedisService) OnPlayerResult(roundID int64, identity string, payout decimal.Decimal) {
	msg := models.YourResultMessage(roundID, payout)
	msg.Nickname = identity
	s.enqueue(msg)
}

// CheckRateLimit counts one action for subject within a fixed window and
// reports whether the count is still within limit.
func (s *RedisService) CheckRateLimit(subject, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, subject, action)

	count, err := s.client.Incr(s.ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(s.ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(subject, action string) error {
	key := fmt.Sprintf(KeyRateLimit, subject, action)
	return s.client.Del(s.ctx, key).Err()
}

// Subscribe is used by tests and sidecar consumers to follow the event
// stream.
func (s *RedisService) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, s.channel)
}
