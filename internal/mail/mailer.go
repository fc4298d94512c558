package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Message is one outbound mail.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail over plain SMTP.
type SMTPSender struct {
	Host string
	Port int
	From string
}

// NewSMTPSender constructs a sender.
func NewSMTPSender(host string, port int, from string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, From: from}
}

// Send submits the message to the configured relay.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("mail: recipient required")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	if err := smtp.SendMail(addr, nil, s.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	return nil
}

var _ Sender = (*SMTPSender)(nil)
