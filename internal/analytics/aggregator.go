package analytics

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/supportgenie/backend/internal/cache/redis"
	"github.com/supportgenie/backend/internal/metrics"
	"github.com/supportgenie/backend/internal/storage/models"
	"github.com/supportgenie/backend/internal/storage/sqlite"
	"github.com/supportgenie/backend/pkg/config"
	"github.com/supportgenie/backend/pkg/logger"
)

// Aggregator computes the dashboard snapshot from stored conversations.
// Read-only, safe to call concurrently and frequently. A "conversation"
// is a distinct session id, so ai_handled + escalated == total always
// holds by construction.
type Aggregator struct {
	store *sqlite.Client
	cache *redis.Client
	cfg   config.AnalyticsConfig
}

// NewAggregator accepts a nil cache; snapshots are then computed on every
// call.
func NewAggregator(store *sqlite.Client, cache *redis.Client, cfg config.AnalyticsConfig) *Aggregator {
	return &Aggregator{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

func (a *Aggregator) Snapshot(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	if a.cache != nil {
		cached, ok, err := a.cache.GetSnapshot(ctx)
		if err != nil {
			logger.Warn("Snapshot cache read failed", zap.Error(err))
		} else if ok {
			metrics.AnalyticsSnapshots.WithLabelValues("cache").Inc()
			return cached, nil
		}
	}

	total, err := a.store.CountSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	escalated, err := a.store.CountEscalatedSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to count escalated conversations: %w", err)
	}

	aiHandled := total - escalated

	snapshot := &models.AnalyticsSnapshot{
		TotalConversations: total,
		AIHandled:          aiHandled,
		Escalated:          escalated,
		AvgResponseTime:    a.cfg.AvgResponseTimeSec,
		SatisfactionScore:  a.cfg.SatisfactionScore,
		TimeSavedHours:     roundOneDecimal(float64(aiHandled) * a.cfg.MinutesSavedPerConversation / 60),
	}

	if a.cache != nil {
		if err := a.cache.SetSnapshot(ctx, snapshot); err != nil {
			logger.Warn("Snapshot cache write failed", zap.Error(err))
		}
	}

	metrics.AnalyticsSnapshots.WithLabelValues("store").Inc()
	return snapshot, nil
}

func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
