package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (s *recordingSink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatcherDeliversEvents(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(NewMemoryQueue(16), sink, nil, nil)
	d.Start(context.Background())
	defer d.Close()

	d.Emit(context.Background(), NewEvent("sess-1", EventCrisisDetected, Details{
		MatchedPhrases: []string{"kill myself"},
		CompositeScore: 85,
	}))

	waitFor(t, func() bool { return sink.count() == 1 })

	sink.mu.Lock()
	got := sink.events[0]
	sink.mu.Unlock()
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, EventCrisisDetected, got.EventType)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestDispatcherBuffersWhenSinkDown(t *testing.T) {
	sink := &recordingSink{fail: true}
	d := NewDispatcher(NewMemoryQueue(16), sink, nil, nil)
	d.Start(context.Background())

	d.Emit(context.Background(), NewEvent("sess-2", EventConsentGiven, Details{Decision: "yes"}))

	// Event drains from the queue but cannot be flushed.
	waitFor(t, func() bool { return d.PendingFallback() == 1 })

	// Sink recovers; the retry or close-time flush must deliver it.
	sink.setFail(false)
	d.Close()
	require.Equal(t, 1, sink.count())
	assert.Equal(t, 0, d.PendingFallback())
}

func TestDispatcherEmitNeverBlocks(t *testing.T) {
	// Queue of capacity 1 with no drain loop running: second Emit must fall
	// back to the buffer instead of waiting forever.
	sink := &recordingSink{}
	d := NewDispatcher(NewMemoryQueue(1), sink, nil, nil)

	start := time.Now()
	d.Emit(context.Background(), NewEvent("sess-3", EventResourcesDelivered, Details{}))
	d.Emit(context.Background(), NewEvent("sess-3", EventResourcesDelivered, Details{Reminder: true}))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, 1, d.PendingFallback())
}

type countingObserver struct {
	mu       sync.Mutex
	failures int
}

func (o *countingObserver) ObserveAuditFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func (o *countingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failures
}

func TestDispatcherCountsEnqueueFailures(t *testing.T) {
	// Full queue with no drain loop: every Emit past capacity is a flush
	// failure the observer must see.
	observer := &countingObserver{}
	d := NewDispatcher(NewMemoryQueue(1), &recordingSink{}, observer, nil)

	d.Emit(context.Background(), NewEvent("sess-5", EventCrisisDetected, Details{}))
	d.Emit(context.Background(), NewEvent("sess-5", EventConsentGiven, Details{}))
	d.Emit(context.Background(), NewEvent("sess-5", EventConsentDeclined, Details{}))

	assert.Equal(t, 2, observer.count())
	assert.Equal(t, 2, d.PendingFallback())
	assert.Equal(t, 0, d.Dropped())
}

func TestDispatcherCountsBufferEvictions(t *testing.T) {
	observer := &countingObserver{}
	d := NewDispatcher(NewMemoryQueue(1), &recordingSink{}, observer, nil)

	for i := 0; i < fallbackCapacity+2; i++ {
		d.buffer(NewEvent("sess-6", EventResourcesDelivered, Details{}))
	}

	assert.Equal(t, fallbackCapacity, d.PendingFallback())
	assert.Equal(t, 2, d.Dropped())
	assert.Equal(t, 2, observer.count())
}

func TestNewEventPayload(t *testing.T) {
	e := NewEvent("sess-4", EventSessionEnded, Details{MessageCount: 7, Escalations: 1})
	assert.Contains(t, string(e.Payload), `"message_count":7`)
	assert.Contains(t, string(e.Payload), `"escalations":1`)
}
