package sink

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/thintesla/pkg/report"
)

// TestRedis_Integration requires a running Redis. We skip if
// connection fails, matching the teacher's own Redis integration test.
func TestRedis_Integration(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	sub := client.Subscribe(ctx, "tesla.violations.test")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	r := NewRedisWithClient(client, "tesla.violations.test")
	defer r.Close()

	r.Report(report.Violation{AutomatonName: "mwc", RunID: "run-1", Message: "Required event didn't occur"})

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	require.Contains(t, msg.Payload, "Required event didn't occur")
}
