package mailer

import "testing"

func TestNewSMTPMailerDefaults(t *testing.T) {
	m, err := NewSMTPMailer(Config{
		Host:       "smtp.example.com",
		Username:   "notify@example.com",
		Password:   "secret",
		AdminEmail: "admin@example.com",
	})
	if err != nil {
		t.Fatalf("new mailer: %v", err)
	}
	if m.cfg.Port != 587 {
		t.Fatalf("expected default port 587, got %d", m.cfg.Port)
	}
	if m.cfg.FromAddress != "notify@example.com" {
		t.Fatalf("from address should default to the username, got %q", m.cfg.FromAddress)
	}
}

func TestNewSMTPMailerRequiresHost(t *testing.T) {
	if _, err := NewSMTPMailer(Config{AdminEmail: "admin@example.com"}); err == nil {
		t.Fatal("expected error for missing host")
	}
}

func TestNewSMTPMailerRequiresAdminEmail(t *testing.T) {
	if _, err := NewSMTPMailer(Config{Host: "smtp.example.com"}); err == nil {
		t.Fatal("expected error for missing admin email")
	}
}
