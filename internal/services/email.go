package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"

	"online-storefront/internal/config"
	"online-storefront/internal/models"
)

// EmailService sends transactional order emails over SMTP. When no SMTP user
// is configured it runs in log-only mode, which is what development and tests
// use.
type EmailService struct {
	config  config.EmailConfig
	logger  zerolog.Logger
	logOnly bool
}

// NewEmailService creates a new email service
func NewEmailService(cfg config.EmailConfig, logger zerolog.Logger) *EmailService {
	return &EmailService{
		config:  cfg,
		logger:  logger,
		logOnly: cfg.SMTPUser == "",
	}
}

// SendOrderConfirmation sends the payment confirmation email with the invoice
// PDF attached
func (s *EmailService) SendOrderConfirmation(order *models.Order, invoicePDF []byte, invoiceRef string) error {
	subject := fmt.Sprintf("Order Confirmation - %s", order.OrderNumber)
	body := fmt.Sprintf(
		"Dear %s,\n\nYour payment for order %s has been confirmed.\n\nTotal: %.2f\nInvoice: %s\n\nThank you for shopping with us!\n",
		order.BillingName, order.OrderNumber, order.TotalAmountInCurrency(), invoiceRef,
	)

	if s.logOnly {
		s.logger.Info().Str("to", order.BillingEmail).Str("subject", subject).
			Str("invoice_ref", invoiceRef).Int("attachment_bytes", len(invoicePDF)).
			Msg("email (log-only): order confirmation")
		return nil
	}

	message := s.buildMessageWithAttachment(order.BillingEmail, subject, body,
		fmt.Sprintf("%s.pdf", invoiceRef), invoicePDF)
	return s.send(order.BillingEmail, message)
}

// SendOrderStatusUpdate sends a plain status-change notification
func (s *EmailService) SendOrderStatusUpdate(order *models.Order, subject, body string) error {
	if s.logOnly {
		s.logger.Info().Str("to", order.BillingEmail).Str("subject", subject).
			Msg("email (log-only): status update")
		return nil
	}

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.config.FromEmail, order.BillingEmail, subject, body)
	return s.send(order.BillingEmail, []byte(message))
}

func (s *EmailService) send(to string, message []byte) error {
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPassword, s.config.SMTPHost)

	if err := smtp.SendMail(addr, auth, s.config.FromEmail, []string{to}, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// buildMessageWithAttachment assembles a multipart MIME message with a PDF
// attachment
func (s *EmailService) buildMessageWithAttachment(to, subject, body, filename string, attachment []byte) []byte {
	boundary := "storefront-invoice-boundary"

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", s.config.FromEmail))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary))

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: application/pdf\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n\r\n", filename))

	encoded := base64.StdEncoding.EncodeToString(attachment)
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded + "\r\n")
	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}
