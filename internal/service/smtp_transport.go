package service

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/noah-isme/redtape-api/pkg/ids"
)

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	RatePerSecond float64
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPTransport sends mail through an SMTP relay, throttled to protect the relay quota.
type SMTPTransport struct {
	config  SMTPConfig
	from    *mail.Address
	limiter *rate.Limiter
	send    sendMailFunc
	now     func() time.Time
}

// NewSMTPTransport validates the sender and builds the transport.
func NewSMTPTransport(config SMTPConfig) (*SMTPTransport, error) {
	from, err := mail.ParseAddress(config.From)
	if err != nil {
		return nil, fmt.Errorf("parse mail sender: %w", err)
	}
	limit := rate.Inf
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
	}
	return &SMTPTransport{
		config:  config,
		from:    from,
		limiter: rate.NewLimiter(limit, 1),
		send:    smtp.SendMail,
		now:     time.Now,
	}, nil
}

// Send waits for the throttle and submits msg.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("smtp send: no recipients")
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("smtp throttle: %w", err)
	}

	var auth smtp.Auth
	if t.config.Username != "" {
		auth = smtp.PlainAuth("", t.config.Username, t.config.Password, t.config.Host)
	}
	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	if err := t.send(addr, auth, t.from.Address, msg.To, t.render(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (t *SMTPTransport) render(msg Message) []byte {
	var buf bytes.Buffer
	domain := t.from.Address[strings.LastIndex(t.from.Address, "@")+1:]
	fmt.Fprintf(&buf, "From: %s\r\n", t.from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", t.now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", ids.New(), domain)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return buf.Bytes()
}
