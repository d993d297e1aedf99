package rabbitmq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type ackCall struct {
	method  string
	tag     uint64
	requeue bool
}

// recordingAcknowledger captures how a delivery was settled.
type recordingAcknowledger struct {
	calls []ackCall
}

func (a *recordingAcknowledger) Ack(tag uint64, multiple bool) error {
	a.calls = append(a.calls, ackCall{method: "ack", tag: tag})
	return nil
}

func (a *recordingAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.calls = append(a.calls, ackCall{method: "nack", tag: tag, requeue: requeue})
	return nil
}

func (a *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	a.calls = append(a.calls, ackCall{method: "reject", tag: tag, requeue: requeue})
	return nil
}

func TestClient_HandleSettlesDeliveries(t *testing.T) {
	failing := func(ctx context.Context, body []byte) error { return errors.New("gateway unavailable") }
	succeeding := func(ctx context.Context, body []byte) error { return nil }

	tests := []struct {
		name        string
		redelivered bool
		handler     func(ctx context.Context, body []byte) error
		want        ackCall
	}{
		{name: "success acks", handler: succeeding, want: ackCall{method: "ack", tag: 7}},
		{name: "first failure requeues", handler: failing, want: ackCall{method: "nack", tag: 7, requeue: true}},
		{name: "failure on redelivery drops", redelivered: true, handler: failing, want: ackCall{method: "nack", tag: 7, requeue: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{logger: zap.NewNop()}
			ack := &recordingAcknowledger{}
			msg := amqp.Delivery{
				Acknowledger: ack,
				DeliveryTag:  7,
				Redelivered:  tt.redelivered,
				Body:         []byte(`{"operation":"create"}`),
			}

			c.handle(context.Background(), msg, tt.handler)

			assert.Equal(t, []ackCall{tt.want}, ack.calls)
		})
	}
}

func TestClient_HandlePassesBody(t *testing.T) {
	c := &Client{logger: zap.NewNop()}
	var got []byte
	c.handle(context.Background(), amqp.Delivery{Acknowledger: &recordingAcknowledger{}, Body: []byte("payload")},
		func(ctx context.Context, body []byte) error {
			got = body
			return nil
		})
	assert.Equal(t, []byte("payload"), got)
}

func TestClient_PublishWithoutChannel(t *testing.T) {
	c := &Client{logger: zap.NewNop()}
	assert.Error(t, c.publish(context.Background(), []byte("{}")))
}
