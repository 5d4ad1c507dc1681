package notify

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store outbox 的认领与状态回写
type Store interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]Message, error)
	MarkSent(ctx context.Context, id int64) error
	MarkRetry(ctx context.Context, id int64, next time.Time, reason string) error
	MarkDead(ctx context.Context, id int64, reason string) error
}

const claimSQL = `
UPDATE outbox_messages
SET status = 'processing', attempts = attempts + 1, next_attempt_at = $2
WHERE id IN (
	SELECT id FROM outbox_messages
	WHERE status IN ('pending', 'processing') AND next_attempt_at <= $1
	ORDER BY id
	LIMIT $3
	FOR UPDATE SKIP LOCKED
)
RETURNING id, channel, recipient, subject, text, html, payload, status, attempts,
	next_attempt_at, last_error, created_at, sent_at`

type sqlxStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStore(db *sqlx.DB) Store {
	return &sqlxStore{db: db, now: time.Now}
}

// Claim 认领到期消息。processing 行的 next_attempt_at 即租约到期时间，
// 进程崩溃后租约过期会被重新认领
func (s *sqlxStore) Claim(ctx context.Context, limit int, lease time.Duration) ([]Message, error) {
	now := s.now()
	var msgs []Message
	if err := s.db.SelectContext(ctx, &msgs, claimSQL, now, now.Add(lease), limit); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *sqlxStore) MarkSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox_messages SET status = 'sent', sent_at = $2, last_error = '' WHERE id = $1`,
		id, s.now())
	return err
}

func (s *sqlxStore) MarkRetry(ctx context.Context, id int64, next time.Time, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox_messages SET status = 'pending', next_attempt_at = $2, last_error = $3 WHERE id = $1`,
		id, next, reason)
	return err
}

func (s *sqlxStore) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox_messages SET status = 'dead', last_error = $2 WHERE id = $1`,
		id, reason)
	return err
}
