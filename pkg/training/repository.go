package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mlpstudio/platform/pkg/common/logger"
	"github.com/mlpstudio/platform/pkg/nn"
)

// Repository persists terminal sessions to Postgres via GORM.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&SessionModel{}, &MetricModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate training tables: %w", err)
	}
	return &Repository{db: db}, nil
}

// SaveTerminal writes the session row and its per-epoch metrics in one
// transaction.
func (r *Repository) SaveTerminal(ctx context.Context, session *Session, layers []nn.LayerSpec) error {
	layersJSON, err := json.Marshal(layers)
	if err != nil {
		return fmt.Errorf("failed to encode layer spec: %w", err)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toSessionModel(session, datatypes.JSON(layersJSON))).Error; err != nil {
			return err
		}
		if len(session.Metrics) == 0 {
			return nil
		}
		rows := make([]MetricModel, 0, len(session.Metrics))
		for _, m := range session.Metrics {
			rows = append(rows, MetricModel{
				SessionID: session.SessionID,
				Epoch:     m.Epoch,
				Loss:      m.Loss,
				Accuracy:  m.Accuracy,
				Timestamp: m.Timestamp,
			})
		}
		return tx.CreateInBatches(rows, 500).Error
	})
}

// Get rebuilds a session from its durable row and metric history.
func (r *Repository) Get(ctx context.Context, sessionID string) (*Session, error) {
	var row SessionModel
	err := r.db.WithContext(ctx).First(&row, "session_id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var metricRows []MetricModel
	err = r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("epoch asc").
		Find(&metricRows).Error
	if err != nil {
		return nil, err
	}
	return toDomain(&row, metricRows), nil
}

// CachedStore wraps a Store with a Redis read-through cache. Terminal
// sessions never change, so cached entries need no invalidation beyond TTL.
type CachedStore struct {
	inner Store
	cache *redis.Client
	ttl   time.Duration
}

func WithCache(inner Store, cache *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedStore{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachedStore) SaveTerminal(ctx context.Context, session *Session, layers []nn.LayerSpec) error {
	if err := c.inner.SaveTerminal(ctx, session, layers); err != nil {
		return err
	}
	c.set(ctx, session)
	return nil
}

func (c *CachedStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	payload, err := c.cache.Get(ctx, cacheKey(sessionID)).Bytes()
	if err == nil {
		var session Session
		if err := json.Unmarshal(payload, &session); err == nil {
			return &session, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.Log.WithError(err).Warn("Session cache read failed; falling back to database")
	}

	session, err := c.inner.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, session)
	return session, nil
}

func (c *CachedStore) set(ctx context.Context, session *Session) {
	payload, err := json.Marshal(session)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(session.SessionID), payload, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Warn("Session cache write failed")
	}
}

func cacheKey(sessionID string) string {
	return "training:session:" + sessionID
}
