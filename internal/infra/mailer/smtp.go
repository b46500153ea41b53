package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SMTPMailer sends plain text mail through an authenticated relay.
type SMTPMailer struct {
	host     string
	port     string
	from     string
	fromName string
	password string
}

func NewSMTPMailer(host, port, from, fromName, password string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from, fromName: fromName, password: password}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) (Result, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.host)
	body := buildMessage(m.from, m.fromName, msg, messageID)

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(m.host, m.port))
	if err != nil {
		return Result{}, fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return Result{}, fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(nil); err != nil {
			return Result{}, fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.password != "" {
		if err := c.Auth(smtp.PlainAuth("", m.from, m.password, m.host)); err != nil {
			return Result{}, fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(m.from); err != nil {
		return Result{}, fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return Result{}, fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return Result{}, fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return Result{}, fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("smtp close data: %w", err)
	}
	_ = c.Quit()

	return Result{StatusCode: 250, MessageID: messageID}, nil
}

func buildMessage(from, fromName string, msg Message, messageID string) []byte {
	sender := from
	if fromName != "" {
		sender = fmt.Sprintf("%s <%s>", fromName, from)
	}
	text := msg.Text
	if text == "" {
		text = msg.HTML
	}

	var b bytes.Buffer
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("From: " + sanitizeHeader(sender) + "\r\n")
	b.WriteString("To: " + sanitizeHeader(msg.To) + "\r\n")
	b.WriteString("Message-ID: " + messageID + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(text + "\r\n")
	return b.Bytes()
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}
