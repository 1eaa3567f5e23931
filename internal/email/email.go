package email

import "context"

// Email is a message to be sent.
type Email struct {
	To          []string
	From        string
	Subject     string
	TextBody    string
	HTMLBody    string // optional
	Attachments []Attachment
	Headers     map[string]string
}

// Attachment is a file attached to an email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Sender delivers email messages. Implementations can use SMTP, Postmark,
// or any other transport.
type Sender interface {
	// Send delivers an email and returns the provider's message id when
	// one is available.
	Send(ctx context.Context, email *Email) (string, error)
}
