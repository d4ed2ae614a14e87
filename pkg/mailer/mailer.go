package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/VaibhavMttl21/ItemManager/pkg/domain"
)

// Notifier sends an enquiry notification for one item to the configured
// recipient. Delivery failures surface to the caller; nothing is retried.
type Notifier interface {
	SendEnquiry(ctx context.Context, item domain.Item) error
}

// Config holds the static SMTP relay settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	AdminEmail  string
}

// SMTPMailer implements Notifier over an SMTP relay.
type SMTPMailer struct {
	cfg     Config
	timeout time.Duration
}

// NewSMTPMailer validates the relay settings and returns a mailer.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.FromAddress == "" {
		cfg.FromAddress = cfg.Username
	}
	if cfg.AdminEmail == "" {
		return nil, fmt.Errorf("admin email is required")
	}
	return &SMTPMailer{cfg: cfg, timeout: 15 * time.Second}, nil
}

// SendEnquiry renders the enquiry body for the item and dispatches it.
func (m *SMTPMailer) SendEnquiry(ctx context.Context, item domain.Item) error {
	body, err := renderEnquiry(item, time.Now())
	if err != nil {
		return fmt.Errorf("render enquiry: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.FromAddress); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(m.cfg.AdminEmail); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject("Enquiry for Item: " + item.Name)
	msg.SetBodyString(mail.TypeTextHTML, body)

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTimeout(m.timeout),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("init smtp client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send enquiry mail: %w", err)
	}
	return nil
}
