// Package cache keeps recent predictions and the cross-process training
// lock in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okian/puckcast/internal/domain/model"
)

const (
	predictionKeyPrefix = "puckcast:prediction:"
	trainingLockKey     = "puckcast:training-lock"

	// DefaultLockTTL bounds how long a crashed trainer can block others.
	DefaultLockTTL = 30 * time.Minute
)

// PredictionCache stores predictions as JSON keyed by (game, model).
type PredictionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPredictionCache returns a cache whose entries expire after ttl.
// A non-positive ttl keeps entries until evicted.
func NewPredictionCache(client *redis.Client, ttl time.Duration) *PredictionCache {
	if ttl < 0 {
		ttl = 0
	}
	return &PredictionCache{client: client, ttl: ttl}
}

func predictionKey(gameID, modelID int64) string {
	return fmt.Sprintf("%s%d:%d", predictionKeyPrefix, gameID, modelID)
}

// Get returns the cached prediction, or nil when absent.
func (c *PredictionCache) Get(ctx context.Context, gameID, modelID int64) (*model.Prediction, error) {
	b, err := c.client.Get(ctx, predictionKey(gameID, modelID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p model.Prediction
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("unmarshal prediction: %w", err)
	}
	return &p, nil
}

// Put stores p under its (game, model) key.
func (c *PredictionCache) Put(ctx context.Context, p *model.Prediction) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}
	return c.client.Set(ctx, predictionKey(p.GameID, p.ModelID), b, c.ttl).Err()
}

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TrainingLock is a single Redis key held by at most one trainer.
type TrainingLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTrainingLock returns a lock that expires after ttl if never released.
func NewTrainingLock(client *redis.Client, ttl time.Duration) *TrainingLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &TrainingLock{client: client, ttl: ttl}
}

// Acquire takes the lock or returns ErrLocked. The returned release
// function is safe to call after the lock expired.
func (l *TrainingLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, trainingLockKey, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{trainingLockKey}, token).Err()
	}, nil
}
