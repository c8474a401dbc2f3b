package charges

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmehdipour/utility-billing/internal/model"
)

const DefaultCacheKey = "ubms:charges"

// RedisCache stores the charge table as one JSON value next to a version
// counter. Invalidate bumps the counter; Set only writes while the counter
// still holds the version the caller read.
type RedisCache struct {
	rdb        *redis.Client
	key        string
	versionKey string
	ttl        time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{rdb: rdb, key: DefaultCacheKey, versionKey: DefaultCacheKey + ":version", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) ([]model.Charge, int64, bool, error) {
	vals, err := c.rdb.MGet(ctx, c.versionKey, c.key).Result()
	if err != nil {
		return nil, 0, false, err
	}
	version, err := parseVersion(vals[0])
	if err != nil {
		return nil, 0, false, err
	}
	raw, ok := vals[1].(string)
	if !ok {
		return nil, version, false, nil
	}
	var rows []model.Charge
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, version, false, err
	}
	return rows, version, true, nil
}

func (c *RedisCache) Set(ctx context.Context, version int64, charges []model.Charge) error {
	raw, err := json.Marshal(charges)
	if err != nil {
		return err
	}
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, c.versionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		v, err := parseVersion(cur)
		if err != nil {
			return err
		}
		if v != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, c.key, raw, c.ttl)
			return nil
		})
		return err
	}, c.versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, c.versionKey)
		p.Del(ctx, c.key)
		return nil
	})
	return err
}

func parseVersion(v any) (int64, error) {
	switch s := v.(type) {
	case nil:
		return 0, nil
	case string:
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	default:
		return 0, errors.New("unexpected charges cache version type")
	}
}
