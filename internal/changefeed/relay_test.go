package changefeed_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"etalase/internal/changefeed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTransport is a mock implementation of changefeed.Transport
type MockTransport struct {
	mock.Mock
	handler func([]byte) error
}

func (m *MockTransport) Publish(ctx context.Context, body []byte) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

func (m *MockTransport) Consume(handler func(body []byte) error) error {
	m.handler = handler
	args := m.Called()
	return args.Error(0)
}

func TestRelay_PublishEncodesEvent(t *testing.T) {
	transport := new(MockTransport)
	relay := changefeed.NewRelay(transport, changefeed.NewBroker(1))

	event := changefeed.Event{Table: "products", Op: changefeed.OpInsert, ID: "p-1", At: time.Unix(1700000000, 0).UTC()}
	expected, err := json.Marshal(event)
	require.NoError(t, err)

	ctx := context.Background()
	transport.On("Publish", ctx, expected).Return(nil).Once()
	assert.NoError(t, relay.Publish(ctx, event))

	transport.On("Publish", ctx, mock.Anything).Return(errors.New("channel closed")).Once()
	assert.Error(t, relay.Publish(ctx, event))
	transport.AssertExpectations(t)
}

func TestRelay_ForwardsDeliveriesToLocalBroker(t *testing.T) {
	transport := new(MockTransport)
	broker := changefeed.NewBroker(4)
	defer broker.Close()

	got := make(chan changefeed.Event, 1)
	sub := broker.Subscribe(func(ev changefeed.Event) { got <- ev })
	defer sub.Unsubscribe()

	transport.On("Consume").Return(nil).Once()
	relay := changefeed.NewRelay(transport, broker)
	require.NoError(t, relay.Start())
	require.NotNil(t, transport.handler)

	body, _ := json.Marshal(changefeed.Event{Table: "products", Op: changefeed.OpDelete, ID: "p-9"})
	require.NoError(t, transport.handler(body))

	ev := receive(t, got)
	assert.Equal(t, changefeed.OpDelete, ev.Op)
	assert.Equal(t, "p-9", ev.ID)

	assert.Error(t, transport.handler([]byte("not json")))
	transport.AssertExpectations(t)
}
