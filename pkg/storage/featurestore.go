// Package storage keeps hot per-user data close to the serving path.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
	"github.com/synaptica-ai/cardiorisk/pkg/records"
)

// Client is the subset of the redis client the feature store needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ProfileLoader fetches a profile from the system of record on a miss.
type ProfileLoader func(ctx context.Context, userID string) (records.Profile, error)

// FeatureStore caches user profiles in redis so history predictions and
// analyses do not hit the user collection on every request. Cache errors
// are logged and fall through to the loader.
type FeatureStore struct {
	client Client
	prefix string
	ttl    time.Duration
}

func NewFeatureStore(client Client, prefix string, ttl time.Duration) *FeatureStore {
	if prefix == "" {
		prefix = "profile"
	}
	return &FeatureStore{client: client, prefix: prefix, ttl: ttl}
}

func (f *FeatureStore) key(userID string) string {
	return fmt.Sprintf("%s:%s", f.prefix, userID)
}

// Get returns the cached profile and whether it was present.
func (f *FeatureStore) Get(ctx context.Context, userID string) (records.Profile, bool, error) {
	data, err := f.client.Get(ctx, f.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return records.Profile{}, false, nil
	}
	if err != nil {
		return records.Profile{}, false, err
	}
	var p records.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return records.Profile{}, false, fmt.Errorf("decode cached profile %s: %w", userID, err)
	}
	return p, true, nil
}

func (f *FeatureStore) Put(ctx context.Context, userID string, p records.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return f.client.Set(ctx, f.key(userID), data, f.ttl).Err()
}

func (f *FeatureStore) Invalidate(ctx context.Context, userID string) error {
	return f.client.Del(ctx, f.key(userID)).Err()
}

// Profile is a read-through lookup.
func (f *FeatureStore) Profile(ctx context.Context, userID string, load ProfileLoader) (records.Profile, error) {
	if p, ok, err := f.Get(ctx, userID); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("profile cache read failed")
	} else if ok {
		return p, nil
	}

	p, err := load(ctx, userID)
	if err != nil {
		return records.Profile{}, err
	}
	if err := f.Put(ctx, userID, p); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("profile cache write failed")
	}
	return p, nil
}
