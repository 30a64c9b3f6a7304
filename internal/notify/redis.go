package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps notifications in Redis so every API replica sees the same
// queues. Queue updates run in MULTI/EXEC so a drain never races a push.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Dial connects to Redis and verifies the connection
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func (s *RedisStore) Put(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	queue := QueueKey(n.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, NotificationKey(n.UserID, n.CallID), data, TTL)
		pipe.RPush(ctx, queue, data)
		pipe.LTrim(ctx, queue, -QueueCap, -1)
		pipe.Expire(ctx, queue, TTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to queue notification: %w", err)
	}

	return nil
}

func (s *RedisStore) Drain(ctx context.Context, userID int64) ([]Notification, error) {
	queue := QueueKey(userID)

	var items *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, queue, 0, -1)
		pipe.Del(ctx, queue)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to drain notifications: %w", err)
	}

	out := make([]Notification, 0, len(items.Val()))
	for _, raw := range items.Val() {
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		out = append(out, n)
	}

	return out, nil
}

func (s *RedisStore) Lookup(ctx context.Context, userID int64, callID string) (Notification, bool, error) {
	data, err := s.client.Get(ctx, NotificationKey(userID, callID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Notification{}, false, nil
	}
	if err != nil {
		return Notification{}, false, fmt.Errorf("failed to get notification: %w", err)
	}

	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, false, fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	return n, true, nil
}

func (s *RedisStore) Forget(ctx context.Context, userID int64, callID string) error {
	if err := s.client.Del(ctx, NotificationKey(userID, callID)).Err(); err != nil {
		return fmt.Errorf("failed to forget notification: %w", err)
	}
	return nil
}
