// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/ManuGH/orkestra/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr       string // Redis server address (host:port)
	Password   string // Redis password (optional)
	DB         int    // Redis database number
	Channel    string // pub/sub channel events are published on
	RecentSize int    // length of the capped recent-events list, 0 disables it
}

// RedisSink mirrors session events to Redis: each event is PUBLISHed on
// Channel and pushed onto a capped list "<Channel>:recent".
type RedisSink struct {
	client     *redis.Client
	channel    string
	recentKey  string
	recentSize int
	logger     zerolog.Logger
}

// NewRedisSink connects and pings Redis.
func NewRedisSink(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("channel", cfg.Channel).
		Msg("connected to Redis event sink")

	return newRedisSink(client, cfg, logger), nil
}

func newRedisSink(client *redis.Client, cfg RedisConfig, logger zerolog.Logger) *RedisSink {
	channel := cfg.Channel
	if channel == "" {
		channel = "orkestra:sessions"
	}
	return &RedisSink{
		client:     client,
		channel:    channel,
		recentKey:  channel + ":recent",
		recentSize: cfg.RecentSize,
		logger:     logger,
	}
}

// Name identifies the sink in health output.
func (s *RedisSink) Name() string { return "redis" }

// Ping checks connectivity.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Write sends one event.
func (s *RedisSink) Write(ctx context.Context, ev ports.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Publish(ctx, s.channel, payload)
	if s.recentSize > 0 {
		pipe.LPush(ctx, s.recentKey, payload)
		pipe.LTrim(ctx, s.recentKey, 0, int64(s.recentSize-1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run forwards events from sub until ctx is done or sub is closed.
// Write failures are logged and counted; they never stop the loop.
func (s *RedisSink) Run(ctx context.Context, sub *Subscription) error {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := s.Write(writeCtx, ev)
			cancel()
			if err != nil {
				metrics.IncEventDrop("redis", "write_failed")
				s.logger.Warn().Err(err).
					Str(xglog.FieldEvent, "events.redis_failed").
					Str(xglog.FieldSessionID, ev.SessionID).
					Msg("failed to mirror session event to redis")
			}
		}
	}
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
