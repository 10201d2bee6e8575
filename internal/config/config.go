package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Env                        string
	HTTPAddr                   string
	SilenceTimeoutMS           int
	TranscribeModel            string
	TranscribeLanguage         string
	GoogleCloudCredentialsJSON string
	DatabaseURL                string
	KafkaBrokers               string
	KafkaTopic                 string
	RelayUpstreamURL           string
	AudioDumpDir               string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.SilenceTimeoutMS <= 0 {
		return fmt.Errorf("SILENCE_MS must be positive, got %d", c.SilenceTimeoutMS)
	}
	if c.KafkaBrokers != "" && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.RelayUpstreamURL != "" && !strings.HasPrefix(c.RelayUpstreamURL, "ws://") && !strings.HasPrefix(c.RelayUpstreamURL, "wss://") {
		return fmt.Errorf("RELAY_UPSTREAM_URL must be a ws:// or wss:// URL, got %q", c.RelayUpstreamURL)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "TRANSCRIBE_MODEL", value: c.TranscribeModel},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) KafkaBrokerList() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if b := strings.TrimSpace(p); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
