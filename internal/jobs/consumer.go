package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/life-quote-scraper/internal/database"
	"github.com/maltedev/life-quote-scraper/internal/runner"
)

const (
	DefaultRequestStream  = "stream:quote_run_requests"
	EventTypeRunRequested = "QUOTE_RUN_REQUESTED"

	defaultGroup    = "quote-server"
	defaultConsumer = "worker-1"
	defaultBlock    = 5 * time.Second
)

type StreamReader interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

type RunCreator interface {
	CreateRun(ctx context.Context, site string) (*database.Run, error)
}

type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
}

// RunRequest is the payload of a QUOTE_RUN_REQUESTED message.
type RunRequest struct {
	Site string `json:"site"`
}

// Consumer turns run requests published on a Redis stream into queued runs.
type Consumer struct {
	redis  StreamReader
	runs   RunCreator
	cfg    ConsumerConfig
	logger *slog.Logger
}

func NewConsumer(redisClient StreamReader, runs RunCreator, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	if cfg.Stream == "" {
		cfg.Stream = DefaultRequestStream
	}
	if cfg.Group == "" {
		cfg.Group = defaultGroup
	}
	if cfg.Consumer == "" {
		cfg.Consumer = defaultConsumer
	}
	if cfg.Block == 0 {
		cfg.Block = defaultBlock
	}
	return &Consumer{
		redis:  redisClient,
		runs:   runs,
		cfg:    cfg,
		logger: logger.With("component", "run_consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("consumer started", "stream", c.cfg.Stream, "group", c.cfg.Group)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    10,
			Block:    c.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if err := c.handle(ctx, msg); err != nil {
					c.logger.Error("failed to process message", "id", msg.ID, "error", err)
					continue
				}
				if err := c.redis.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
					c.logger.Error("failed to acknowledge message", "id", msg.ID, "error", err)
				}
			}
		}
	}
}

// handle returns an error only when the message should stay pending.
// Malformed requests and unknown sites are acknowledged and dropped.
func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) error {
	eventType, _ := msg.Values["event_type"].(string)
	if eventType != EventTypeRunRequested {
		return nil
	}

	raw, ok := msg.Values["payload"].(string)
	if !ok {
		c.logger.Warn("dropping request without payload", "id", msg.ID)
		return nil
	}

	var req RunRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil || req.Site == "" {
		c.logger.Warn("dropping malformed request", "id", msg.ID, "payload", raw)
		return nil
	}

	run, err := c.runs.CreateRun(ctx, req.Site)
	if errors.Is(err, runner.ErrUnknownSite) {
		c.logger.Warn("dropping request for unknown site", "id", msg.ID, "site", req.Site)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	c.logger.Info("run requested", "id", msg.ID, "run_id", run.ID, "site", run.Site)
	return nil
}
