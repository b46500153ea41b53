package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, fromAddress, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) (Result, error) {
	to := mail.NewEmail(msg.ToName, msg.To)

	var v3 *mail.SGMailV3
	if msg.TemplateID != "" {
		v3 = mail.NewV3Mail()
		v3.SetFrom(m.from)
		v3.SetTemplateID(msg.TemplateID)
		p := mail.NewPersonalization()
		p.AddTos(to)
		for k, v := range msg.TemplateData {
			p.SetDynamicTemplateData(k, v)
		}
		v3.AddPersonalizations(p)
	} else {
		v3 = mail.NewSingleEmail(m.from, msg.Subject, to, msg.Text, msg.HTML)
	}

	resp, err := m.client.SendWithContext(ctx, v3)
	if err != nil {
		return Result{}, fmt.Errorf("sendgrid send: %w", err)
	}

	res := Result{StatusCode: resp.StatusCode}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		res.MessageID = ids[0]
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res, fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return res, nil
}
