// ABOUTME: Tests for Broadcaster fan-out pub/sub of session events
// ABOUTME: Covers subscribe, publish, unsubscribe, context cancellation, concurrency

package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEvent(id string) Event {
	return Event{
		Kind:  EventTurnAppended,
		Turn:  &Turn{ID: id, Prompt: "hello from " + id, OutputImage: "img"},
		State: State{TurnCount: 1},
	}
}

func TestBroadcaster_SingleSubscriberReceivesEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context())

	b.Publish(makeEvent("evt-1"))

	select {
	case received := <-ch:
		assert.Equal(t, EventTurnAppended, received.Kind)
		require.NotNil(t, received.Turn)
		assert.Equal(t, "evt-1", received.Turn.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_MultipleSubscribersReceiveSameEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()

	ch1, _ := b.Subscribe(ctx)
	ch2, _ := b.Subscribe(ctx)
	ch3, _ := b.Subscribe(ctx)

	b.Publish(makeEvent("evt-2"))

	for i, ch := range []<-chan Event{ch1, ch2, ch3} {
		select {
		case received := <-ch:
			assert.Equal(t, "evt-2", received.Turn.ID, "subscriber %d got wrong event", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_PreservesPublishOrder(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context())

	b.Publish(Event{Kind: EventStateChanged})
	b.Publish(makeEvent("evt-3"))
	b.Publish(Event{Kind: EventContinueInputReset})

	var got []EventKind
	for range 3 {
		select {
		case ev := <-ch:
			got = append(got, ev.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []EventKind{EventStateChanged, EventTurnAppended, EventContinueInputReset}, got)
}

func TestBroadcaster_SlowConsumerDoesNotBlockPublisher(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()

	// Subscribe but never read from the first channel
	_, _ = b.Subscribe(ctx)
	ch2, _ := b.Subscribe(ctx)

	// Publish more events than the buffer size to overflow the slow subscriber
	done := make(chan struct{})
	go func() {
		for range subscriberBufferSize * 2 {
			b.Publish(makeEvent("evt-overflow"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}

	receivedCount := 0
	for {
		select {
		case <-ch2:
			receivedCount++
		case <-time.After(200 * time.Millisecond):
			assert.Equal(t, subscriberBufferSize, receivedCount, "fast consumer keeps a full buffer")
			return
		}
	}
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, subID := b.Subscribe(ctx)

	b.mu.RLock()
	_, exists := b.subscribers[subID]
	b.mu.RUnlock()
	assert.True(t, exists, "subscription should exist before cancel")

	cancel()

	// Channel should be closed
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}

	b.mu.RLock()
	_, exists = b.subscribers[subID]
	b.mu.RUnlock()
	assert.False(t, exists, "subscription should be removed after context cancel")
}

func TestBroadcaster_ManualUnsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context())

	b.Unsubscribe(subID)

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Publishing and unsubscribing again should not panic
	b.Publish(makeEvent("evt-after-unsub"))
	b.Unsubscribe(subID)
}

func TestBroadcaster_CloseClosesAllSubscriptions(t *testing.T) {
	b := NewBroadcaster(nil)

	ch1, _ := b.Subscribe(t.Context())
	ch2, _ := b.Subscribe(t.Context())

	b.Close()
	b.Close()

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case _, ok := <-ch:
			assert.False(t, ok, "channel %d should be closed after Close()", i)
		case <-time.After(time.Second):
			t.Fatalf("channel %d not closed after Close()", i)
		}
	}

	late, _ := b.Subscribe(t.Context())
	_, ok := <-late
	assert.False(t, ok, "subscribing after Close yields a closed channel")

	b.Publish(makeEvent("evt-after-close"))
}

func TestBroadcaster_ConcurrentPublishSubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	ctx := t.Context()

	for range 10 {
		wg.Go(func() {
			ch, subID := b.Subscribe(ctx)
			defer b.Unsubscribe(subID)
			for range 5 {
				select {
				case <-ch:
				case <-time.After(500 * time.Millisecond):
					return
				}
			}
		})
	}

	for range 10 {
		wg.Go(func() {
			for range 10 {
				b.Publish(makeEvent("concurrent-evt"))
			}
		})
	}

	wg.Wait()
}

func TestBroadcaster_SubscribeReturnsUniqueIDs(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()

	_, id1 := b.Subscribe(ctx)
	_, id2 := b.Subscribe(ctx)
	_, id3 := b.Subscribe(ctx)

	require.NotEqual(t, id1, id2)
	require.NotEqual(t, id1, id3)
	require.NotEqual(t, id2, id3)
}

func TestBroadcaster_PublishWithoutSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	b.Publish(makeEvent("evt-nowhere"))
}
