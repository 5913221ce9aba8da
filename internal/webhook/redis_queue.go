package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"heysheet/internal/redis"
)

const defaultQueueKey = "webhook:retries"

// RedisQueue keeps jobs in a sorted set scored by due time in milliseconds.
// Several instances may poll the same key: a job belongs to whoever removes it.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = defaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Schedule(ctx context.Context, job Job, at time.Time) error {
	raw := q.client.Raw()
	if raw == nil {
		return fmt.Errorf("redis client not initialized")
	}
	member, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal webhook job: %w", err)
	}
	return raw.ZAdd(ctx, q.key, goredis.Z{Score: float64(at.UnixMilli()), Member: member}).Err()
}

func (q *RedisQueue) Due(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	raw := q.client.Raw()
	if raw == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	members, err := raw.ZRangeByScore(ctx, q.key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read due webhook jobs: %w", err)
	}

	var jobs []Job
	for _, member := range members {
		removed, err := raw.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return jobs, fmt.Errorf("claim webhook job: %w", err)
		}
		if removed == 0 {
			continue // claimed by another instance
		}
		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			log.Printf("webhook: dropping undecodable job: %v", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
