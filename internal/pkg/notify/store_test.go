package notify

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*sqlxStore, sqlmock.Sqlmock, time.Time) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &sqlxStore{db: sqlx.NewDb(db, "pgx"), now: func() time.Time { return now }}
	return store, mock, now
}

func TestStore_Claim(t *testing.T) {
	store, mock, now := newMockStore(t)

	cols := []string{"id", "channel", "recipient", "subject", "text", "html", "payload", "status",
		"attempts", "next_attempt_at", "last_error", "created_at", "sent_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(1, "email", "a@b.c", "Order Confirmation", "thanks", "", []byte(`{"kind":"order_confirmation"}`),
			"processing", 1, now.Add(time.Minute), "", now, nil).
		AddRow(2, "event", "order-1", "order.paid", "", "", []byte(`{"orderId":"order-1"}`),
			"processing", 1, now.Add(time.Minute), "", now, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(now, now.Add(time.Minute), 10).
		WillReturnRows(rows)

	msgs, err := store.Claim(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, ChannelEmail, msgs[0].Channel)
	assert.Equal(t, StatusProcessing, msgs[0].Status)
	assert.JSONEq(t, `{"orderId":"order-1"}`, string(msgs[1].Payload))
	assert.Nil(t, msgs[1].SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Marks(t *testing.T) {
	store, mock, now := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'sent'")).
		WithArgs(int64(1), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'pending'")).
		WithArgs(int64(2), now.Add(time.Minute), "smtp down").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'dead'")).
		WithArgs(int64(3), "no sender").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.MarkSent(ctx, 1))
	assert.NoError(t, store.MarkRetry(ctx, 2, now.Add(time.Minute), "smtp down"))
	assert.NoError(t, store.MarkDead(ctx, 3, "no sender"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewEvent(t *testing.T) {
	msg, err := NewEvent("order.paid", "order-1", map[string]string{"orderId": "order-1"})
	require.NoError(t, err)
	assert.Equal(t, ChannelEvent, msg.Channel)
	assert.Equal(t, "order-1", msg.Recipient)
	assert.Equal(t, "order.paid", msg.Subject)
	assert.JSONEq(t, `{"orderId":"order-1"}`, string(msg.Payload))
}
