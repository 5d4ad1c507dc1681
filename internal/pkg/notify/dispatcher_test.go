package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"phonehub/internal/pkg/config"
	"phonehub/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Claim(ctx context.Context, limit int, lease time.Duration) ([]Message, error) {
	args := m.Called(ctx, limit, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockStore) MarkSent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) MarkRetry(ctx context.Context, id int64, next time.Time, reason string) error {
	return m.Called(ctx, id, next, reason).Error(0)
}

func (m *MockStore) MarkDead(ctx context.Context, id int64, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(to, subject, text, html string) error {
	return m.Called(to, subject, text, html).Error(0)
}

type recordingPusher struct {
	account string
	ext     map[string]string
}

func (p *recordingPusher) PushToAccount(accountID, title, body string, ext map[string]string) error {
	p.account = accountID
	p.ext = ext
	return nil
}

func newTestDispatcher(store Store) (*Dispatcher, *metrics.MetricsCollector) {
	collector := metrics.NewMetricsCollector()
	d := NewDispatcher(store, config.OutboxConfig{
		Workers:      1,
		BatchSize:    10,
		MaxAttempts:  3,
		RetryBackoff: time.Minute,
	}, collector)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }
	return d, collector
}

func TestDispatcher_Deliver(t *testing.T) {
	ctx := context.Background()
	email := Message{ID: 1, Channel: ChannelEmail, Recipient: "a@b.c", Subject: "Hi", Text: "hello", Attempts: 1}

	t.Run("Sent", func(t *testing.T) {
		store := new(MockStore)
		mailer := new(MockMailer)
		d, _ := newTestDispatcher(store)
		d.Register(ChannelEmail, EmailSender{Mailer: mailer})

		mailer.On("Send", "a@b.c", "Hi", "hello", "").Return(nil)
		store.On("MarkSent", ctx, int64(1)).Return(nil)

		assert.NoError(t, d.deliver(ctx, email))
		store.AssertExpectations(t)
		mailer.AssertExpectations(t)
	})

	t.Run("Retry with backoff", func(t *testing.T) {
		store := new(MockStore)
		mailer := new(MockMailer)
		d, _ := newTestDispatcher(store)
		d.Register(ChannelEmail, EmailSender{Mailer: mailer})

		msg := email
		msg.Attempts = 2
		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
		// 第 2 次失败，退避 2 × 1 分钟
		store.On("MarkRetry", ctx, int64(1), d.now().Add(2*time.Minute), "smtp down").Return(nil)

		assert.Error(t, d.deliver(ctx, msg))
		store.AssertExpectations(t)
	})

	t.Run("Dead after max attempts", func(t *testing.T) {
		store := new(MockStore)
		mailer := new(MockMailer)
		d, _ := newTestDispatcher(store)
		d.Register(ChannelEmail, EmailSender{Mailer: mailer})

		msg := email
		msg.Attempts = 3
		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
		store.On("MarkDead", ctx, int64(1), "smtp down").Return(nil)

		assert.Error(t, d.deliver(ctx, msg))
		store.AssertExpectations(t)
		store.AssertNotCalled(t, "MarkRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("No sender for channel", func(t *testing.T) {
		store := new(MockStore)
		d, _ := newTestDispatcher(store)

		store.On("MarkDead", ctx, int64(7), `no sender configured for channel "event"`).Return(nil)

		assert.NoError(t, d.deliver(ctx, Message{ID: 7, Channel: ChannelEvent, Attempts: 1}))
		store.AssertExpectations(t)
	})
}

func TestPushSender_PayloadBecomesExtParameters(t *testing.T) {
	pusher := &recordingPusher{}
	msg := NewPush("user-1", "Order paid", "ORD-1", map[string]string{"orderId": "o-1"})

	assert.NoError(t, PushSender{Pusher: pusher}.Send(context.Background(), msg))
	assert.Equal(t, "user-1", pusher.account)
	assert.Equal(t, map[string]string{"orderId": "o-1"}, pusher.ext)
}

func TestDispatcher_PollSubmitsClaimedMessages(t *testing.T) {
	store := new(MockStore)
	mailer := new(MockMailer)
	d, _ := newTestDispatcher(store)
	d.Register(ChannelEmail, EmailSender{Mailer: mailer})

	msgs := []Message{
		{ID: 1, Channel: ChannelEmail, Recipient: "a@b.c", Attempts: 1},
		{ID: 2, Channel: ChannelEmail, Recipient: "d@e.f", Attempts: 1},
	}
	ctx := context.Background()
	store.On("Claim", mock.Anything, 10, d.lease()).Return(msgs, nil)
	store.On("MarkSent", mock.Anything, mock.Anything).Return(nil)
	mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	d.pool.Start(ctx)
	assert.Equal(t, 2, d.poll(ctx))
	d.pool.Stop()

	store.AssertNumberOfCalls(t, "MarkSent", 2)
	mailer.AssertNumberOfCalls(t, "Send", 2)
}
