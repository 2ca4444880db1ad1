package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_WritesKeyedMessageWithHeader(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w)

	err := p.Publish(context.Background(), New(TypeOrderPaid, "ORD-1", map[string]any{"total_amount": 1497}))
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ORD-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, TypeOrderPaid, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, TypeOrderPaid, decoded.Type)
	assert.Equal(t, "ORD-1", decoded.Key)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisherWithWriter(&fakeWriter{err: boom})

	err := p.Publish(context.Background(), New(TypeOrderCreated, "ORD-2", nil))
	assert.ErrorIs(t, err, boom)
}

func TestPublishBestEffort_SwallowsErrors(t *testing.T) {
	p := NewKafkaPublisherWithWriter(&fakeWriter{err: errors.New("broker down")})
	assert.NotPanics(t, func() {
		PublishBestEffort(context.Background(), p, New(TypeOrderCreated, "ORD-3", nil))
		PublishBestEffort(context.Background(), nil, New(TypeOrderCreated, "ORD-3", nil))
	})
}

func TestLogPublisher(t *testing.T) {
	assert.NoError(t, LogPublisher{}.Publish(context.Background(), New(TypeOrderCreated, "ORD-4", map[string]string{"a": "b"})))
	assert.Error(t, LogPublisher{}.Publish(context.Background(), New(TypeOrderCreated, "ORD-5", make(chan int))))
}
