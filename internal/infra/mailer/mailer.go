package mailer

import "context"

// Message is a single transactional email. When TemplateID is set the provider renders the
// template with TemplateData and Subject/Text/HTML are only used as fallbacks.
type Message struct {
	To           string
	ToName       string
	Subject      string
	Text         string
	HTML         string
	TemplateID   string
	TemplateData map[string]interface{}
}

type Result struct {
	StatusCode int
	MessageID  string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) (Result, error)
}
