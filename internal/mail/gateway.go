// Package mail implements the one-shot SMTP gateway. It authenticates to the
// relay with PLAIN over implicit TLS and delivers UTF-8 HTML messages.
//
// The gateway is deliberately dumb: no queue, no retries, no templating
// beyond what callers hand it. Any transport failure surfaces as a single
// error and the caller decides whether to surface or retry.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/config"
)

// mailSends counts outbound deliveries by outcome ("ok" / "error").
var mailSends = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mail_sends_total",
		Help: "Total number of outbound SMTP deliveries.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(mailSends)
}

// Mailer is the outbound-mail contract consumed by the service layer.
// Production code uses *Gateway; tests substitute fakes.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Gateway is a Mailer backed by an SMTP relay speaking implicit TLS.
type Gateway struct {
	cfg    config.SMTPConfig
	client *gomail.Client
}

// NewGateway builds the SMTP client from configuration. The connection is
// not dialed here; each Send dials, delivers, and closes.
func NewGateway(cfg config.SMTPConfig) (*Gateway, error) {
	if cfg.Sender == "" {
		return nil, fmt.Errorf("SMTP_SENDER is required")
	}

	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSSL(), // implicit TLS; the relay expects TLS from the first byte
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Sender),
		gomail.WithPassword(cfg.Password),
		gomail.WithTimeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &Gateway{cfg: cfg, client: client}, nil
}

// Send delivers one HTML message to a single recipient. The subject is
// encoded per RFC 2047 by the underlying client. The overall delivery is
// bounded by the configured send timeout on top of whatever deadline ctx
// already carries.
func (g *Gateway) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMsg()
	if err := msg.From(g.cfg.Sender); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	sendCtx, cancel := context.WithTimeout(ctx, g.cfg.SendTimeout)
	defer cancel()

	if err := g.client.DialAndSendWithContext(sendCtx, msg); err != nil {
		mailSends.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("host", g.cfg.Host).Msg("smtp delivery failed")
		return fmt.Errorf("smtp delivery failed: %w", err)
	}

	mailSends.WithLabelValues("ok").Inc()
	return nil
}
