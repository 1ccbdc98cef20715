package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	testdb "github.com/navigo-fleet/pipeline/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	shared := testdb.NewSharedTestDB(t)
	st := shared.NewStore(t)

	pub := bus.NewPublisher(st)
	sub := bus.NewSubscriber(st, shared.ConnString(), bus.Config{
		PollInterval:      50 * time.Millisecond,
		VisibilityTimeout: 2 * time.Second,
	})

	var mu sync.Mutex
	var received []string
	done := make(chan struct{})

	sub.Subscribe("telemetry-ingested", func(ctx context.Context, env bus.Envelope) error {
		mu.Lock()
		received = append(received, env.CaseID())
		mu.Unlock()
		close(done)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sub.Start(ctx))
	defer sub.Stop()

	require.NoError(t, pub.Publish(ctx, "telemetry-ingested", map[string]any{
		"case_id":    "case_roundtrip",
		"vehicle_id": "veh_1",
	}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"case_roundtrip"}, received)
}

func TestFailedHandlerRedeliversMessage(t *testing.T) {
	shared := testdb.NewSharedTestDB(t)
	st := shared.NewStore(t)

	pub := bus.NewPublisher(st)
	sub := bus.NewSubscriber(st, shared.ConnString(), bus.Config{
		PollInterval:      50 * time.Millisecond,
		VisibilityTimeout: 300 * time.Millisecond,
	})

	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	sub.Subscribe("anomaly-detected", func(ctx context.Context, env bus.Envelope) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 2 {
			return assert.AnError
		}
		close(done)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sub.Start(ctx))
	defer sub.Stop()

	require.NoError(t, pub.Publish(ctx, "anomaly-detected", map[string]any{"case_id": "case_retry"}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for redelivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, attempts, 2)
}
