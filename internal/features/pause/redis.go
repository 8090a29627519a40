// Package pause — redis.go хранит паузы в Redis с нативным TTL.
// Ключ живёт ровно до конца паузы; Resolve всё равно применяется при чтении.
package pause

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "guard:pause:"

// RedisStore — хранилище пауз в Redis.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisStore создаёт хранилище пауз в Redis.
func NewRedisStore(rdb *redis.Client, now func() time.Time) *RedisStore {
	return &RedisStore{rdb: rdb, now: now}
}

// Get возвращает состояние паузы или nil.
func (r *RedisStore) Get(ctx context.Context, userID string) (*State, error) {
	raw, err := r.rdb.Get(ctx, redisKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("повреждённая запись паузы: %w", err)
	}
	return &st, nil
}

// Save сохраняет паузу с TTL до её окончания. Снятая пауза удаляет ключ.
func (r *RedisStore) Save(ctx context.Context, st State) error {
	key := redisKeyPrefix + st.UserID
	if !st.Paused {
		return r.rdb.Del(ctx, key).Err()
	}

	ttl := st.ResumeAt.Sub(r.now())
	if ttl <= 0 {
		return r.rdb.Del(ctx, key).Err()
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, key, raw, ttl).Err()
}

// ClearExpired — в Redis истёкшие ключи удаляет сам сервер.
func (r *RedisStore) ClearExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
