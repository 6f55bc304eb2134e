package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type BusSuite struct {
	suite.Suite
	bus *Bus
	ctx context.Context
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) SetupTest() {
	s.bus = New(WithOrigin("node-a"))
	s.ctx = context.Background()
}

func (s *BusSuite) TestHandlersRunInRegistrationOrderBeforeEmitReturns() {
	var calls []string
	s.bus.Subscribe(RiskCreated, func(Event) { calls = append(calls, "first") })
	s.bus.Subscribe(RiskCreated, func(Event) { calls = append(calls, "second") })
	s.bus.Subscribe(RiskUpdated, func(Event) { calls = append(calls, "other-topic") })

	_, err := s.bus.Emit(s.ctx, RiskCreated, Tombstone{ID: "r1"})
	s.Require().NoError(err)

	s.Equal([]string{"first", "second"}, calls)
}

func (s *BusSuite) TestEventCarriesSequenceOriginAndPayload() {
	var got []Event
	s.bus.Subscribe(ProfileDeleted, func(ev Event) { got = append(got, ev) })

	_, err := s.bus.Emit(s.ctx, ProfileDeleted, Tombstone{ID: "p1"})
	s.Require().NoError(err)
	_, err = s.bus.Emit(s.ctx, ProfileDeleted, Tombstone{ID: "p2"})
	s.Require().NoError(err)

	s.Require().Len(got, 2)
	s.Less(got[0].Seq, got[1].Seq)
	s.Equal("node-a", got[0].Origin)
	s.JSONEq(`{"id":"p1"}`, string(got[0].Payload))
}

func (s *BusSuite) TestUnsubscribeRestoresListenerCount() {
	s.Equal(0, s.bus.ListenerCount(SubmissionUpdated))

	sub := s.bus.Subscribe(SubmissionUpdated, func(Event) {})
	other := s.bus.Subscribe(SubmissionUpdated, func(Event) {})
	s.Equal(2, s.bus.ListenerCount(SubmissionUpdated))

	sub.Unsubscribe()
	sub.Unsubscribe()
	s.Equal(1, s.bus.ListenerCount(SubmissionUpdated))

	other.Unsubscribe()
	s.Equal(0, s.bus.ListenerCount(SubmissionUpdated))
}

func (s *BusSuite) TestNoDeliveryAfterUnsubscribe() {
	delivered := 0
	sub := s.bus.Subscribe(RiskUpdated, func(Event) { delivered++ })

	_, _ = s.bus.Emit(s.ctx, RiskUpdated, nil)
	sub.Unsubscribe()
	_, _ = s.bus.Emit(s.ctx, RiskUpdated, nil)

	s.Equal(1, delivered)
}

func (s *BusSuite) TestUnsubscribeFromInsideHandler() {
	var later int
	var sub *Subscription
	sub = s.bus.Subscribe(RiskUpdated, func(Event) { sub.Unsubscribe() })
	s.bus.Subscribe(RiskUpdated, func(Event) { later++ })

	_, _ = s.bus.Emit(s.ctx, RiskUpdated, nil)
	_, _ = s.bus.Emit(s.ctx, RiskUpdated, nil)

	s.Equal(2, later)
	s.Equal(1, s.bus.ListenerCount(RiskUpdated))
}

func (s *BusSuite) TestPanickingHandlerDoesNotStopOthers() {
	ran := false
	s.bus.Subscribe(RiskDeleted, func(Event) { panic("boom") })
	s.bus.Subscribe(RiskDeleted, func(Event) { ran = true })

	_, err := s.bus.Emit(s.ctx, RiskDeleted, Tombstone{ID: "r"})
	s.Require().NoError(err)
	s.True(ran)
}

func (s *BusSuite) TestRelayKeepsOrigin() {
	var got Event
	s.bus.Subscribe(ProfileUpdated, func(ev Event) { got = ev })

	s.bus.Relay(s.ctx, Event{Topic: ProfileUpdated, Origin: "node-b", Seq: 900, Payload: json.RawMessage(`{"id":"x"}`)})

	s.Equal("node-b", got.Origin)
	s.Equal(uint64(1), got.Seq)
}

func (s *BusSuite) TestUnmarshalablePayload() {
	_, err := s.bus.Emit(s.ctx, RiskCreated, make(chan int))
	s.Error(err)
}

// Concurrent emitters: every subscriber sees the same global order.
func TestConcurrentEmitsAreSeenInOneOrder(t *testing.T) {
	bus := New()
	var mu sync.Mutex
	seen := map[int][]uint64{}
	for i := range 3 {
		for _, topic := range []Topic{RiskCreated, RiskUpdated} {
			bus.Subscribe(topic, func(ev Event) {
				mu.Lock()
				seen[i] = append(seen[i], ev.Seq)
				mu.Unlock()
			})
		}
	}

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			topic := RiskCreated
			if w%2 == 1 {
				topic = RiskUpdated
			}
			for range 50 {
				_, err := bus.Emit(context.Background(), topic, Tombstone{ID: "r"})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen[0], 400)
	for i := 1; i < 3; i++ {
		assert.Equal(t, seen[0], seen[i])
	}
	for j := 1; j < len(seen[0]); j++ {
		assert.Less(t, seen[0][j-1], seen[0][j])
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	bus := New(WithMetrics(m), WithClock(func() time.Time { return time.Unix(0, 0) }))
	sub := bus.Subscribe(RiskCreated, func(Event) {})
	bus.Subscribe(RiskCreated, func(Event) {})

	ev, err := bus.Emit(context.Background(), RiskCreated, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(0, 0), ev.At)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Emitted.WithLabelValues(string(RiskCreated))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Dispatched.WithLabelValues(string(RiskCreated))))
	sub.Unsubscribe()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Listeners.WithLabelValues(string(RiskCreated))))
}

func TestTopics(t *testing.T) {
	assert.Len(t, AllTopics(), 10)
	assert.True(t, NotificationNew.Known())
	assert.False(t, Topic("risk:archived").Known())
}
