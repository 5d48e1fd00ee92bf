package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Email is one outgoing message.
type Email struct {
	To        string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
	ReplyTo   string
}

// Mailer delivers transactional e-mail.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// SendgridMailer sends through the SendGrid v3 API.
type SendgridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendgridMailer(apiKey, fromAddress, fromName string) *SendgridMailer {
	return &SendgridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

// plainToHTML escapes user-supplied text for the HTML part and keeps its line breaks.
func plainToHTML(text string) string {
	escaped := html.EscapeString(text)
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>"
}

func (m *SendgridMailer) build(msg Email) *mail.SGMailV3 {
	to := mail.NewEmail(msg.ToName, msg.To)
	body := msg.HTML
	if body == "" {
		body = plainToHTML(msg.PlainText)
	}
	message := mail.NewSingleEmail(m.from, msg.Subject, to, msg.PlainText, body)
	if msg.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}
	return message
}

func (m *SendgridMailer) Send(ctx context.Context, msg Email) error {
	message := m.build(msg)
	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when
// no SendGrid key is configured.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Email) error {
	m.log.Info("📧 email (not sent, mailer not configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.PlainText),
	)
	return nil
}
