package config

import "testing"

func TestLoadRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoadWebhookNeedsURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notify")
	t.Setenv("SMS_PROVIDER", "Webhook")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without SMS_WEBHOOK_URL")
	}
	t.Setenv("SMS_WEBHOOK_URL", "http://sms.local/send")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.SMSProvider != "webhook" || c.GroupID != "notification-service" {
		t.Fatalf("unexpected config %+v", c)
	}
}
