package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig describes the outbound mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	TLSMode  string // "starttls" (587) or "tls" (465)
	From     string
	ReplyTo  string
	// AllowPrivateHost disables the SSRF host check, for development
	// setups running a local mail catcher.
	AllowPrivateHost bool
}

// SMTPSender delivers queued emails over SMTP.
type SMTPSender struct {
	config SMTPConfig
}

func NewSMTPSender(config SMTPConfig) (*SMTPSender, error) {
	if config.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if _, err := sanitizeAddress(config.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	return &SMTPSender{config: config}, nil
}

// Send delivers one message. The host is re-validated on every send, not just
// at startup, so a DNS record flipped to an internal address is still caught.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if !s.config.AllowPrivateHost {
		if err := validateSMTPHost(s.config.Host); err != nil {
			return err
		}
	}

	toAddr, err := sanitizeAddress(to)
	if err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	fromAddr, err := sanitizeAddress(s.config.From)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	dialer := &net.Dialer{Timeout: 5 * time.Second}

	var conn net.Conn
	if s.config.TLSMode == "tls" {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
			ServerName: s.config.Host,
			MinVersion: tls.VersionTLS12,
		})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp connect failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer client.Quit()

	if s.config.TLSMode == "starttls" {
		if err := client.StartTLS(&tls.Config{
			ServerName: s.config.Host,
			MinVersion: tls.VersionTLS12,
		}); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}

	if s.config.User != "" {
		auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(fromAddr); err != nil {
		return fmt.Errorf("smtp MAIL failed: %w", err)
	}
	if err := client.Rcpt(toAddr); err != nil {
		return fmt.Errorf("smtp RCPT failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(s.buildMessage(fromAddr, toAddr, subject, body)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize message: %w", err)
	}
	return nil
}

// buildMessage constructs an RFC 5322 plain-text message.
func (s *SMTPSender) buildMessage(from, to, subject, body string) []byte {
	var msg strings.Builder
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	if s.config.ReplyTo != "" {
		msg.WriteString("Reply-To: " + s.config.ReplyTo + "\r\n")
	}
	msg.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	msg.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

// sanitizeAddress parses and normalizes an address, rejecting header
// injection via embedded CR/LF.
func sanitizeAddress(addr string) (string, error) {
	if strings.ContainsAny(addr, "\r\n") {
		return "", errors.New("address contains line breaks")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return "", err
	}
	return parsed.Address, nil
}

func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	return strings.ReplaceAll(v, "\n", " ")
}

// validateSMTPHost blocks delivery through loopback, private and reserved
// addresses. Every resolved IP must be public.
func validateSMTPHost(host string) error {
	host = strings.ToLower(strings.TrimSpace(host))
	switch host {
	case "localhost", "0.0.0.0", "127.0.0.1", "::1", "[::1]":
		return errors.New("smtp host points at loopback")
	}

	if ip := net.ParseIP(host); ip != nil {
		return validatePublicIP(ip)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return errors.New("smtp host resolution failed")
	}
	if len(ips) == 0 {
		return errors.New("smtp host resolves to no addresses")
	}
	for _, ip := range ips {
		if err := validatePublicIP(ip); err != nil {
			return err
		}
	}
	return nil
}

func validatePublicIP(ip net.IP) error {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return errors.New("smtp host points at a private network")
	}
	return nil
}
