package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// Sender 单个渠道的投递实现
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Mailer 由 internal/pkg/mailer 实现
type Mailer interface {
	Send(to, subject, text, html string) error
}

// Pusher 由 internal/pkg/push 实现
type Pusher interface {
	PushToAccount(accountID string, title, body string, extParameters map[string]string) error
}

// Publisher 由 internal/pkg/events 实现
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type EmailSender struct{ Mailer Mailer }

func (s EmailSender) Send(ctx context.Context, msg *Message) error {
	return s.Mailer.Send(msg.Recipient, msg.Subject, msg.Text, msg.HTML)
}

type PushSender struct{ Pusher Pusher }

func (s PushSender) Send(ctx context.Context, msg *Message) error {
	var raw map[string]interface{}
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &raw); err != nil {
			return fmt.Errorf("decode push payload: %w", err)
		}
	}
	ext := make(map[string]string, len(raw))
	for k, v := range raw {
		ext[k] = fmt.Sprint(v)
	}
	return s.Pusher.PushToAccount(msg.Recipient, msg.Subject, msg.Text, ext)
}

type EventSender struct{ Publisher Publisher }

func (s EventSender) Send(ctx context.Context, msg *Message) error {
	return s.Publisher.Publish(ctx, msg.Recipient, msg.Payload)
}
