package notify

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelEvent Channel = "event"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusDead       Status = "dead"
)

// Message outbox 表的一行，与业务数据在同一事务内写入
type Message struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" db:"id" json:"id"`
	Channel       Channel         `gorm:"type:varchar(16);not null;index" db:"channel" json:"channel"`
	Recipient     string          `gorm:"type:varchar(255);not null" db:"recipient" json:"recipient"`
	Subject       string          `gorm:"type:varchar(255);not null;default:''" db:"subject" json:"subject"`
	Text          string          `gorm:"type:text;not null;default:''" db:"text" json:"text"`
	HTML          string          `gorm:"column:html;type:text;not null;default:''" db:"html" json:"html"`
	Payload       json.RawMessage `gorm:"type:jsonb;not null;default:'{}'" db:"payload" json:"payload"`
	Status        Status          `gorm:"type:varchar(16);not null;default:'pending'" db:"status" json:"status"`
	Attempts      int             `gorm:"not null;default:0" db:"attempts" json:"attempts"`
	NextAttemptAt time.Time       `gorm:"not null;default:now()" db:"next_attempt_at" json:"nextAttemptAt"`
	LastError     string          `gorm:"type:text;not null;default:''" db:"last_error" json:"lastError"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	SentAt        *time.Time      `db:"sent_at" json:"sentAt"`
}

func (Message) TableName() string {
	return "outbox_messages"
}

// NewEmail 邮件消息，kind 仅用于排查 (welcome / order_confirmation ...)
func NewEmail(kind, to, subject, text, html string) *Message {
	return &Message{
		Channel:   ChannelEmail,
		Recipient: to,
		Subject:   subject,
		Text:      text,
		HTML:      html,
		Payload:   mustJSON(map[string]string{"kind": kind}),
	}
}

// NewPush 推送到账号 (用户 ID)，ext 原样透传给 App
func NewPush(account, title, body string, ext map[string]string) *Message {
	return &Message{
		Channel:   ChannelPush,
		Recipient: account,
		Subject:   title,
		Text:      body,
		Payload:   mustJSON(ext),
	}
}

// NewEvent 领域事件，key 决定分区，subject 记录事件类型
func NewEvent(eventType, key string, event interface{}) (*Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &Message{
		Channel:   ChannelEvent,
		Recipient: key,
		Subject:   eventType,
		Payload:   data,
	}, nil
}

// Enqueue 在调用方事务 (或普通连接) 中写入消息
func Enqueue(tx *gorm.DB, msgs ...*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now()
	for _, m := range msgs {
		m.Status = StatusPending
		if m.NextAttemptAt.IsZero() {
			m.NextAttemptAt = now
		}
	}
	return tx.Create(msgs).Error
}

// Outbox 不需要与业务写入同事务时使用
type Outbox struct {
	db *gorm.DB
}

func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) Enqueue(ctx context.Context, msgs ...*Message) error {
	return Enqueue(o.db.WithContext(ctx), msgs...)
}

func mustJSON(v interface{}) json.RawMessage {
	if v == nil {
		return json.RawMessage("{}")
	}
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return json.RawMessage("{}")
	}
	return data
}
