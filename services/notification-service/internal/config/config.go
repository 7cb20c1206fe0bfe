package config

import (
	"errors"
	"strings"

	libconfig "github.com/md-rashed-zaman/homebook/libs/config"
)

type Config struct {
	ServiceName  string `mapstructure:"SERVICE_NAME"`
	Port         string `mapstructure:"PORT"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	AutoMigrate  bool   `mapstructure:"AUTO_MIGRATE"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	GroupID      string `mapstructure:"KAFKA_GROUP_ID"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`

	// SMSProvider is "webhook" or "noop".
	SMSProvider     string `mapstructure:"SMS_PROVIDER"`
	SMSWebhookURL   string `mapstructure:"SMS_WEBHOOK_URL"`
	SMSWebhookToken string `mapstructure:"SMS_WEBHOOK_TOKEN"`
}

func Load(file string) (Config, error) {
	var c Config
	err := libconfig.Load(&c, map[string]any{
		"SERVICE_NAME":      "notification-service",
		"PORT":              "8085",
		"DATABASE_URL":      "",
		"AUTO_MIGRATE":      false,
		"KAFKA_BROKERS":     "",
		"KAFKA_GROUP_ID":    "notification-service",
		"SMTP_HOST":         "mailpit",
		"SMTP_PORT":         "1025",
		"SMTP_FROM":         "no-reply@homebook.local",
		"SMTP_USERNAME":     "",
		"SMTP_PASSWORD":     "",
		"SMS_PROVIDER":      "noop",
		"SMS_WEBHOOK_URL":   "",
		"SMS_WEBHOOK_TOKEN": "",
	}, file)
	if err != nil {
		return Config{}, err
	}
	c.SMSProvider = strings.ToLower(strings.TrimSpace(c.SMSProvider))
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if c.SMSProvider == "webhook" && c.SMSWebhookURL == "" {
		return Config{}, errors.New("SMS_WEBHOOK_URL is required when SMS_PROVIDER=webhook")
	}
	return c, nil
}

func (c Config) Brokers() []string { return libconfig.SplitList(c.KafkaBrokers) }
