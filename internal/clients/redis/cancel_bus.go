package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/storycut-backend/internal/logger"
)

// CancelBus holds per-job cancellation flags in redis so any worker in the
// pool can observe a cancel issued through any API instance. Handlers poll
// IsCancelled at safe points.
type CancelBus interface {
	RequestCancel(ctx context.Context, jobID uuid.UUID) error
	IsCancelled(ctx context.Context, jobID uuid.UUID) (bool, error)
	Clear(ctx context.Context, jobID uuid.UUID) error
	Close() error
}

type cancelBus struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewCancelBus(log *logger.Logger) (CancelBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &cancelBus{
		log: log.With("service", "RedisCancelBus"),
		rdb: rdb,
		ttl: 24 * time.Hour,
	}, nil
}

func cancelKey(jobID uuid.UUID) string {
	return "cancel:" + jobID.String()
}

func (b *cancelBus) RequestCancel(ctx context.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return nil
	}
	return b.rdb.Set(ctx, cancelKey(jobID), "1", b.ttl).Err()
}

func (b *cancelBus) IsCancelled(ctx context.Context, jobID uuid.UUID) (bool, error) {
	if jobID == uuid.Nil {
		return false, nil
	}
	_, err := b.rdb.Get(ctx, cancelKey(jobID)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *cancelBus) Clear(ctx context.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return nil
	}
	return b.rdb.Del(ctx, cancelKey(jobID)).Err()
}

func (b *cancelBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
