package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yukikurage/task-tracker-api/internal/models"
)

const (
	keyTaskListPrefix     = "tasks:list:"
	keyTaskListGeneration = "tasks:list-generation"
)

// TaskListQuery identifies one cached task list.
type TaskListQuery struct {
	Status string
	Page   int
	Limit  int
}

func (q TaskListQuery) key(generation int64) string {
	status := q.Status
	if status == "" {
		status = "all"
	}
	return fmt.Sprintf("%s%d:%s:%d:%d", keyTaskListPrefix, generation, status, q.Page, q.Limit)
}

// TaskCache caches task list results in Redis. List keys carry a generation number that
// every write bumps, so a list read before a write can never be served after it.
type TaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTaskCache returns a new TaskCache.
func NewTaskCache(rdb *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{rdb: rdb, ttl: ttl}
}

func (c *TaskCache) generation(ctx context.Context) (int64, error) {
	n, err := c.rdb.Get(ctx, keyTaskListGeneration).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// GetList returns the cached list for q, or nil on a miss, together with the generation
// it looked in. Pass that generation to SetList after loading the list from the database.
func (c *TaskCache) GetList(ctx context.Context, q TaskListQuery) ([]models.Task, int64, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, err
	}

	b, err := c.rdb.Get(ctx, q.key(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, nil
	}
	if err != nil {
		return nil, gen, err
	}

	list := []models.Task{}
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, gen, err
	}
	return list, gen, nil
}

// SetList stores the list for q under generation gen. If a write has bumped the
// generation since, the entry is unreachable and simply expires.
func (c *TaskCache) SetList(ctx context.Context, gen int64, q TaskListQuery, list []models.Task) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, q.key(gen), b, c.ttl).Err()
}

// InvalidateAll bumps the generation and removes the lists cached so far. Called on each
// task write.
func (c *TaskCache) InvalidateAll(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, keyTaskListGeneration).Err(); err != nil {
		return err
	}

	iter := c.rdb.Scan(ctx, 0, keyTaskListPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return rdb, nil
}
