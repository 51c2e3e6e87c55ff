package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/go-redis/redis/v8"
)

// RedisBroker is a reference Broker backed by a Redis list, following the
// teacher's redis.NewClient wiring idiom (cmd/commands/serve.go). Jobs are
// pushed as JSON by an upstream dispatcher and popped blocking by workers;
// acks are published on a per-style result list so a supervisor can
// observe completion.
type RedisBroker struct {
	rdb       *redis.Client
	queueKey  string
	ackPrefix string
}

func NewRedisBroker(rdb *redis.Client, queueKey string) *RedisBroker {
	return &RedisBroker{rdb: rdb, queueKey: queueKey, ackPrefix: "render:ack:"}
}

func (b *RedisBroker) Fetch(ctx context.Context) (*domain.Job, error) {
	res, err := b.rdb.BLPop(ctx, 5*time.Second, b.queueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("broker: fetch: %w", err)
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("broker: unexpected BLPOP result shape")
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("broker: decoding job: %w", err)
	}
	return &job, nil
}

func (b *RedisBroker) Ack(ctx context.Context, job *domain.Job, jobErr error) error {
	payload := map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status.String(),
	}
	if jobErr != nil {
		payload["error"] = jobErr.Error()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broker: encoding ack: %w", err)
	}
	key := b.ackPrefix + job.Style
	return b.rdb.RPush(ctx, key, data).Err()
}
