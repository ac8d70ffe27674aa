package messaging

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/tests/testutil"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable).Error(0)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, msg).Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(msgs).Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "storefront.events", "topic", true).Return(nil)
	ch.On("PublishWithContext", "storefront.events", "order.placed", mock.MatchedBy(func(msg amqp.Publishing) bool {
		return msg.ContentType == "application/json" &&
			msg.DeliveryMode == amqp.Persistent &&
			msg.Type == "order.placed" &&
			len(msg.Body) > 0
	})).Return(nil)

	p, err := NewAMQPPublisher(ch, "storefront.events", event.NewEventSerializer(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), testutil.NewFakeEvent("order.placed")))
	ch.AssertExpectations(t)
}

func TestAMQPPublisher_DeclareFailure(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "x", "topic", true).Return(errors.New("denied"))

	_, err := NewAMQPPublisher(ch, "x", event.NewEventSerializer(), zap.NewNop())
	assert.Error(t, err)
}

func TestAMQPPublisher_PublishFailure(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "x", "topic", true).Return(nil)
	ch.On("PublishWithContext", "x", "order.placed", mock.Anything).Return(errors.New("closed"))
	ch.On("Close").Return(nil)

	p, err := NewAMQPPublisher(ch, "x", event.NewEventSerializer(), zap.NewNop())
	require.NoError(t, err)

	err = p.Publish(context.Background(), testutil.NewFakeEvent("order.placed"))
	assert.ErrorContains(t, err, "closed")
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	e := testutil.NewFakeEvent("order.placed")
	w.On("WriteMessages", mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		m := msgs[0]
		return string(m.Key) == e.AggregateID().String() &&
			len(m.Headers) == 2 &&
			m.Headers[0].Key == "event_type" &&
			string(m.Headers[0].Value) == "order.placed"
	})).Return(nil)

	p := NewKafkaPublisher(w, event.NewEventSerializer(), zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), e))
	w.AssertExpectations(t)
}

func TestKafkaPublisher_EmptyAndFailure(t *testing.T) {
	w := &mockWriter{}
	p := NewKafkaPublisher(w, event.NewEventSerializer(), zap.NewNop())

	require.NoError(t, p.Publish(context.Background()))
	w.AssertNotCalled(t, "WriteMessages", mock.Anything)

	w.On("WriteMessages", mock.Anything).Return(errors.New("no leader"))
	w.On("Close").Return(nil)
	assert.ErrorContains(t, p.Publish(context.Background(), testutil.NewFakeEvent("order.placed")), "no leader")
	assert.NoError(t, p.Close())
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter("orders", "localhost:9092")
	assert.Equal(t, "orders", w.Topic)
	assert.True(t, w.AllowAutoTopicCreation)
}
