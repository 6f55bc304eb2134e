//go:build integration

package bridge_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qsync/internal/events"
	"qsync/internal/events/bridge"
	"qsync/pkg/testutil/containers"
)

type RedisBridgeSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisBridgeSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBridgeSuite))
}

func (s *RedisBridgeSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisBridgeSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Health(ctx))
	s.Require().NoError(s.redis.FlushAll(ctx))
}

func (s *RedisBridgeSuite) TestEventsCrossInstancesOnce() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	busA := events.New(events.WithOrigin("a"))
	busB := events.New(events.WithOrigin("b"))

	var mu sync.Mutex
	var onA, onB []events.Event
	busA.Subscribe(events.RiskCreated, func(ev events.Event) { mu.Lock(); onA = append(onA, ev); mu.Unlock() })
	busB.Subscribe(events.RiskCreated, func(ev events.Event) { mu.Lock(); onB = append(onB, ev); mu.Unlock() })

	go func() { _ = bridge.NewRedisBridge(busA, s.redis.Client.Client, "qsync:test", logger).Run(ctx) }()
	go func() { _ = bridge.NewRedisBridge(busB, s.redis.Client.Client, "qsync:test", logger).Run(ctx) }()

	// both bridges must be subscribed before the emission
	s.Eventually(func() bool {
		return busA.ListenerCount(events.RiskCreated) == 2 && busB.ListenerCount(events.RiskCreated) == 2
	}, 5*time.Second, 20*time.Millisecond)

	_, err := busA.Emit(ctx, events.RiskCreated, events.Tombstone{ID: "r1"})
	s.Require().NoError(err)

	s.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(onB) == 1
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	s.Len(onA, 1, "origin instance must not receive its own event back")
	s.Len(onB, 1)
	s.Equal("a", onB[0].Origin)
	s.JSONEq(`{"id":"r1"}`, string(onB[0].Payload))
}
