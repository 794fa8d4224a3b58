package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

func TestPublishSendsValue(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"event_type":"order_created"}` {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewProducerFrom(mock, logger.NewNop())
	err := p.Publish(context.Background(), "storefront.orders", "ord-1", []byte(`{"event_type":"order_created"}`), nil)

	assert.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestPublishWrapsSendFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFrom(mock, logger.NewNop())
	err := p.Publish(context.Background(), "storefront.orders", "ord-1", []byte("{}"), nil)

	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.NoError(t, p.Close())
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	p := NewProducerFrom(mock, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, "t", "k", []byte("{}"), nil), context.Canceled)
	assert.NoError(t, p.Close())
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("orders", "ord-1", []byte("payload"), map[string]string{
		"event_type": "order_created",
		"event_id":   "evt-1",
	})

	assert.Equal(t, "orders", msg.Topic)
	assert.Equal(t, sarama.StringEncoder("ord-1"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_id", string(msg.Headers[0].Key))
	assert.Equal(t, "order_created", string(msg.Headers[1].Value))

	assert.Nil(t, buildMessage("orders", "", nil, nil).Key)
}

func TestHeader(t *testing.T) {
	msg := &sarama.ConsumerMessage{Headers: []*sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte("order_deleted")},
	}}

	assert.Equal(t, "order_deleted", Header(msg, "event_type"))
	assert.Empty(t, Header(msg, "missing"))
}

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "member" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "orders" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

type handlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

func (f handlerFunc) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	return f(ctx, msg)
}

func TestConsumeClaimMarksHandledMessages(t *testing.T) {
	c := &Consumer{handlers: make(map[string]MessageHandler), logger: logger.NewNop()}
	var handled []int64
	c.RegisterHandler("orders", handlerFunc(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		handled = append(handled, msg.Offset)
		return nil
	}))

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "orders", Offset: 0}
	claim.messages <- &sarama.ConsumerMessage{Topic: "unrouted", Offset: 1}
	claim.messages <- &sarama.ConsumerMessage{Topic: "orders", Offset: 2}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(session, claim))

	assert.Equal(t, []int64{0, 2}, handled)
	assert.Equal(t, []int64{0, 1, 2}, session.marked)
}

func TestConsumeClaimStopsAtFailedMessage(t *testing.T) {
	c := &Consumer{handlers: make(map[string]MessageHandler), logger: logger.NewNop()}
	var handled []int64
	c.RegisterHandler("orders", handlerFunc(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		handled = append(handled, msg.Offset)
		if msg.Offset == 1 {
			return errors.New("boom")
		}
		return nil
	}))

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "orders", Offset: 0}
	claim.messages <- &sarama.ConsumerMessage{Topic: "orders", Offset: 1}
	claim.messages <- &sarama.ConsumerMessage{Topic: "orders", Offset: 2}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	err := c.ConsumeClaim(session, claim)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 1")
	assert.Equal(t, []int64{0, 1}, handled)
	assert.Equal(t, []int64{0}, session.marked)
}
