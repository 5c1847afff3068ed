package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/codesense/internal/logger"
	"go.uber.org/zap"
)

// RedisStore keeps the newest rows in a capped Redis list (newest first).
type RedisStore struct {
	client  redis.UniversalClient
	listKey string
	listMax int
	logger  *logger.Logger
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL, listKey string, listMax int, log *logger.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := NewRedisStoreWithClient(client, listKey, listMax, log)
	store.logger.Info("Redis audit store initialized",
		zap.String("redis_url", logger.MaskURL(redisURL)),
		zap.String("key", store.listKey),
		zap.Int("max_rows", store.listMax))
	return store, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, listKey string, listMax int, log *logger.Logger) *RedisStore {
	if listKey == "" {
		listKey = "codesense:audit"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisStore{
		client:  client,
		listKey: listKey,
		listMax: listMax,
		logger:  log.WithComponent("audit"),
	}
}

func (s *RedisStore) Append(ctx context.Context, row Row) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal audit row: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.listKey, payload)
	pipe.LTrim(ctx, s.listKey, 0, int64(s.listMax-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append audit row: %w", err)
	}
	return nil
}

func (s *RedisStore) Tail(ctx context.Context, n int) ([]Row, error) {
	if n <= 0 {
		return []Row{}, nil
	}

	items, err := s.client.LRange(ctx, s.listKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit rows: %w", err)
	}

	rows := make([]Row, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var row Row
		if err := json.Unmarshal([]byte(items[i]), &row); err != nil {
			s.logger.Warn("Skipping invalid audit entry", zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
