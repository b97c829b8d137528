package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

type ackResult struct {
	tag     uint64
	acked   bool
	requeue bool
}

type recordingAcker struct {
	mu      sync.Mutex
	results []ackResult
}

func (r *recordingAcker) Ack(tag uint64, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, ackResult{tag: tag, acked: true})
	return nil
}

func (r *recordingAcker) Nack(tag uint64, _ bool, requeue bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, ackResult{tag: tag, requeue: requeue})
	return nil
}

func (r *recordingAcker) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

type handlerFunc func(ctx context.Context, event models.SessionEvent) error

func (f handlerFunc) Record(ctx context.Context, event models.SessionEvent) error {
	return f(ctx, event)
}

func TestDispatch(t *testing.T) {
	acker := &recordingAcker{}
	msgs := make(chan amqp.Delivery, 3)
	msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte(`{"type":"started","session_id":"s1"}`)}
	msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, Body: []byte(`not json`)}
	msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 3, Body: []byte(`{"type":"deleted","session_id":"fail"}`)}
	close(msgs)

	var got []models.SessionEvent
	handler := handlerFunc(func(_ context.Context, event models.SessionEvent) error {
		if event.SessionID == "fail" {
			return errors.New("database down")
		}
		got = append(got, event)
		return nil
	})

	require.NoError(t, Dispatch(context.Background(), msgs, handler, nil))

	require.Len(t, got, 1)
	assert.Equal(t, models.SessionEventStarted, got[0].Type)
	assert.Equal(t, []ackResult{
		{tag: 1, acked: true},
		{tag: 2, requeue: false},
		{tag: 3, requeue: true},
	}, acker.results)
}

func TestDispatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Dispatch(ctx, make(chan amqp.Delivery), handlerFunc(func(context.Context, models.SessionEvent) error {
			return nil
		}), nil)
	}()

	cancel()
	assert.NoError(t, <-done)
}
