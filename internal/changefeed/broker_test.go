package changefeed_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"etalase/internal/changefeed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan changefeed.Event) changefeed.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return changefeed.Event{}
	}
}

func TestBroker_DeliversToEverySubscriber(t *testing.T) {
	broker := changefeed.NewBroker(4)
	defer broker.Close()

	first := make(chan changefeed.Event, 4)
	second := make(chan changefeed.Event, 4)
	subA := broker.Subscribe(func(ev changefeed.Event) { first <- ev })
	subB := broker.Subscribe(func(ev changefeed.Event) { second <- ev })
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	ev := changefeed.Event{Table: "products", Op: changefeed.OpDelete, ID: "p-1"}
	require.NoError(t, broker.Publish(context.Background(), ev))

	assert.Equal(t, ev, receive(t, first))
	assert.Equal(t, ev, receive(t, second))
}

func TestBroker_PreservesOrderPerSubscriber(t *testing.T) {
	broker := changefeed.NewBroker(8)
	defer broker.Close()

	got := make(chan changefeed.Event, 8)
	sub := broker.Subscribe(func(ev changefeed.Event) { got <- ev })
	defer sub.Unsubscribe()

	ops := []changefeed.Op{changefeed.OpInsert, changefeed.OpUpdate, changefeed.OpDelete}
	for _, op := range ops {
		require.NoError(t, broker.Publish(context.Background(), changefeed.Event{Table: "products", Op: op}))
	}
	for _, op := range ops {
		assert.Equal(t, op, receive(t, got).Op)
	}
}

func TestSubscription_UnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	broker := changefeed.NewBroker(4)
	defer broker.Close()

	var calls int32
	sub := broker.Subscribe(func(changefeed.Event) { atomic.AddInt32(&calls, 1) })
	assert.Equal(t, 1, broker.Len())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, broker.Len())

	require.NoError(t, broker.Publish(context.Background(), changefeed.Event{Table: "products", Op: changefeed.OpInsert}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestBroker_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	broker := changefeed.NewBroker(1)
	defer broker.Close()

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	var once sync.Once
	sub := broker.Subscribe(func(changefeed.Event) {
		once.Do(wg.Done)
		<-release
	})

	ctx := context.Background()
	require.NoError(t, broker.Publish(ctx, changefeed.Event{Op: changefeed.OpInsert}))
	wg.Wait() // handler is now busy with the first event

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = broker.Publish(ctx, changefeed.Event{Op: changefeed.OpUpdate})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	close(release)
	sub.Unsubscribe()
}

func TestBroker_PublishHonoursCancelledContext(t *testing.T) {
	broker := changefeed.NewBroker(1)
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, broker.Publish(ctx, changefeed.Event{}), context.Canceled)
}

func TestBroker_CloseDetachesSubscribers(t *testing.T) {
	broker := changefeed.NewBroker(1)
	sub := broker.Subscribe(func(changefeed.Event) {})
	broker.Close()

	assert.Equal(t, 0, broker.Len())
	sub.Unsubscribe()

	late := broker.Subscribe(func(changefeed.Event) { t.Error("inert subscription must not be called") })
	require.NoError(t, broker.Publish(context.Background(), changefeed.Event{}))
	late.Unsubscribe()
}
