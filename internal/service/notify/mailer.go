package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/dodohu918/Medical-chatbot/internal/config"
)

// 邮件主题固定，正文由引擎提供。
const mailSubject = "這是您的醫療建議與診所資訊"

// Mailer 通过 SMTP 发送总结邮件。失败由调用方观察，绝不回传给用户。
type Mailer struct {
	client *mail.Client
	from   string
}

// NewMailer 根据配置创建邮件客户端。
func NewMailer(cfg config.MailConfig) (*Mailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Mailer{client: client, from: cfg.From}, nil
}

// Send 将总结正文寄给用户。
func (m *Mailer) Send(ctx context.Context, address, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(address); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(mailSubject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", address, err)
	}
	return nil
}
