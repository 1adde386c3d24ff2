package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/supportgenie/backend/internal/storage/models"
	"github.com/supportgenie/backend/pkg/logger"
	"github.com/supportgenie/backend/pkg/utils"
)

// Client caches derived analytics snapshots. The dashboard polls
// /api/analytics after every chat turn, so even a short TTL absorbs most
// of the read load.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("snapshot_ttl", ttl),
	)

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func snapshotKey() string {
	return "analytics:" + utils.HashString("snapshot")
}

func (c *Client) SetSnapshot(ctx context.Context, snapshot *models.AnalyticsSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	err = c.client.Set(ctx, snapshotKey(), data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}

	logger.Debug("Analytics snapshot cached", zap.Duration("ttl", c.ttl))
	return nil
}

func (c *Client) GetSnapshot(ctx context.Context) (*models.AnalyticsSnapshot, bool, error) {
	data, err := c.client.Get(ctx, snapshotKey()).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get snapshot cache: %w", err)
	}

	var snapshot models.AnalyticsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	logger.Debug("Analytics snapshot cache hit")
	return &snapshot, true, nil
}

// InvalidateSnapshot drops the cached snapshot, used after writes that
// change the aggregates faster than the TTL would.
func (c *Client) InvalidateSnapshot(ctx context.Context) error {
	return c.client.Del(ctx, snapshotKey()).Err()
}
