package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const keyPrefix = "storefront:report:"

// レポート結果のキャッシュ。Redisが落ちていてもブレーカーで即失敗させる
type RedisCache struct {
	rdb redis.UniversalClient
	cb  *gobreaker.CircuitBreaker
	log *logrus.Logger
}

func NewRedisCache(rdb redis.UniversalClient, log *logrus.Logger) *RedisCache {
	st := gobreaker.Settings{
		Name:        "ReportCache",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		//キャッシュミスは失敗に数えない
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("circuit breaker %s changed from %s to %s", name, from, to)
		},
	}
	return &RedisCache{rdb: rdb, cb: gobreaker.NewCircuitBreaker(st), log: log}
}

// 見つかればdstに入れてtrue
func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := c.cb.Execute(func() (any, error) {
		return c.rdb.Get(ctx, keyPrefix+key).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "cache get")
	}
	if err := json.Unmarshal(v.([]byte), dst); err != nil {
		return false, errors.Wrap(err, "cache decode")
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "cache encode")
	}
	_, err = c.cb.Execute(func() (any, error) {
		return nil, c.rdb.Set(ctx, keyPrefix+key, b, ttl).Err()
	})
	return errors.Wrap(err, "cache set")
}

// Redis未設定のとき
type NopCache struct{}

func (NopCache) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (NopCache) Set(context.Context, string, any, time.Duration) error { return nil }
