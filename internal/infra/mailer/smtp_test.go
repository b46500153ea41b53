package mailer

import (
	"strings"
	"testing"
)

func TestBuildMessageHeaders(t *testing.T) {
	raw := string(buildMessage("noreply@example.org", "Roof Fund", Message{
		To:      "donor@example.com",
		Subject: "Thank you\r\nBcc: evil@example.com",
		Text:    "Thanks for your gift",
	}, "<id@example.org>"))

	if !strings.Contains(raw, "From: Roof Fund <noreply@example.org>\r\n") {
		t.Errorf("missing From header:\n%s", raw)
	}
	if !strings.Contains(raw, "Message-ID: <id@example.org>\r\n") {
		t.Errorf("missing Message-ID header:\n%s", raw)
	}
	if strings.Contains(raw, "\r\nBcc:") {
		t.Errorf("header injection not stripped:\n%s", raw)
	}
	if !strings.HasSuffix(raw, "\r\n\r\nThanks for your gift\r\n") {
		t.Errorf("unexpected body:\n%s", raw)
	}
}

func TestBuildMessageFallsBackToHTML(t *testing.T) {
	raw := string(buildMessage("a@example.org", "", Message{To: "b@example.com", HTML: "<p>hi</p>"}, "<x@y>"))
	if !strings.Contains(raw, "From: a@example.org\r\n") {
		t.Errorf("unexpected From header:\n%s", raw)
	}
	if !strings.Contains(raw, "<p>hi</p>") {
		t.Errorf("html body missing:\n%s", raw)
	}
}
