package mailer

import (
	"errors"

	"phonehub/internal/pkg/config"

	"gopkg.in/gomail.v2"
)

// Mailer 通过 SMTP 发送邮件
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// New 未配置 SMTP 时返回 nil，邮件渠道随之关闭
func New(cfg config.SMTPConfig) *Mailer {
	if cfg.Host == "" {
		return nil
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.SSL = cfg.SSL

	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &Mailer{dialer: d, from: from}
}

// Send 发送纯文本 + 可选 HTML 的邮件
func (m *Mailer) Send(to, subject, text, html string) error {
	msg, err := m.build(to, subject, text, html)
	if err != nil {
		return err
	}
	return m.dialer.DialAndSend(msg)
}

func (m *Mailer) build(to, subject, text, html string) (*gomail.Message, error) {
	if to == "" {
		return nil, errors.New("mailer: empty recipient")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	if html != "" {
		msg.AddAlternative("text/html", html)
	}
	return msg, nil
}
