package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/arverne/softsell/internal/pricing"
	"github.com/arverne/softsell/internal/service"
)

//go:embed templates/*.html
var templates embed.FS

// Service composes and sends transactional mail. It implements
// service.Mailer for the fulfillment pipeline.
type Service struct {
	sender      Sender
	fromAddress string
	fromName    string
	logger      *slog.Logger
	tmpl        *template.Template
}

var _ service.Mailer = (*Service)(nil)

func NewService(sender Sender, fromAddress, fromName string, logger *slog.Logger) (*Service, error) {
	tmpl, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Service{
		sender:      sender,
		fromAddress: fromAddress,
		fromName:    fromName,
		logger:      logger,
		tmpl:        tmpl,
	}, nil
}

type orderConfirmationData struct {
	Name          string
	InvoiceNumber string
	Total         string
}

// SendOrderConfirmation sends the post-payment confirmation with the
// invoice document attached.
func (s *Service) SendOrderConfirmation(ctx context.Context, params service.OrderConfirmationParams) error {
	htmlBody, textBody, err := s.render("order_confirmation.html", orderConfirmationData{
		Name:          params.Name,
		InvoiceNumber: params.InvoiceNumber,
		Total:         pricing.FormatCents(params.TotalCents),
	})
	if err != nil {
		return fmt.Errorf("failed to render order confirmation: %w", err)
	}

	msg := &Email{
		To:       []string{params.To},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  "Order Confirmation - " + params.InvoiceNumber,
		HTMLBody: htmlBody,
		TextBody: textBody,
	}
	if len(params.Invoice) > 0 {
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    fmt.Sprintf("invoice-%s.html", params.InvoiceNumber),
			ContentType: "text/html",
			Content:     params.Invoice,
		})
	}

	if _, err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send order confirmation: %w", err)
	}
	return nil
}

func (s *Service) render(name string, data any) (string, string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	htmlBody := buf.String()
	return htmlBody, generatePlainText(htmlBody), nil
}

// generatePlainText creates a simple plain text version from HTML.
func generatePlainText(html string) string {
	text := html

	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n\n")
	text = strings.ReplaceAll(text, "</div>", "\n")
	text = strings.ReplaceAll(text, "</h1>", "\n\n")
	text = strings.ReplaceAll(text, "</h2>", "\n\n")
	text = strings.ReplaceAll(text, "</h3>", "\n\n")

	for strings.Contains(text, "<") && strings.Contains(text, ">") {
		start := strings.Index(text, "<")
		end := strings.Index(text, ">")
		if start >= 0 && end > start {
			text = text[:start] + text[end+1:]
		} else {
			break
		}
	}

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")

	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
