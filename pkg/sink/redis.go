package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/thintesla/pkg/report"
)

// Redis publishes each violation on a pub/sub channel, for deployments
// that fan violations out to a live alerting pipeline rather than a
// database. Grounded on the teacher's own *redis.Client wrapper
// (pkg/kernel's rate limiter) — same NewClient/Options shape.
type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis builds a Redis sink publishing on channel (default
// "tesla.violations" if empty).
func NewRedis(addr, password string, db int, channel string) *Redis {
	if channel == "" {
		channel = "tesla.violations"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: client, channel: channel}
}

// NewRedisWithClient wraps an already-configured client, for tests
// pointed at a miniredis-style in-process server.
func NewRedisWithClient(client *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = "tesla.violations"
	}
	return &Redis{client: client, channel: channel}
}

// Report implements report.Reporter by publishing the violation as
// JSON. Errors are logged, not returned — Reporter has no error return.
func (r *Redis) Report(v report.Violation) {
	payload, err := json.Marshal(v)
	if err != nil {
		fmt.Printf("sink: failed to marshal violation: %v\n", err)
		return
	}
	if err := r.client.Publish(context.Background(), r.channel, payload).Err(); err != nil {
		fmt.Printf("sink: failed to publish violation: %v\n", err)
	}
}

// Close closes the underlying client.
func (r *Redis) Close() error { return r.client.Close() }
