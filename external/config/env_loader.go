package config

import (
	"fmt"

	internalconfig "github.com/DUBIX17/dubix-stt3/internal/config"
	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	HTTPAddr                   string `env:"HTTP_ADDR" envDefault:":8080"`
	SilenceTimeoutMS           int    `env:"SILENCE_MS" envDefault:"1200"`
	TranscribeModel            string `env:"TRANSCRIBE_MODEL" envDefault:"latest_short"`
	TranscribeLanguage         string `env:"TRANSCRIBE_LANGUAGE" envDefault:"en-US"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	DatabaseURL                string `env:"DATABASE_URL"`
	KafkaBrokers               string `env:"KAFKA_BROKERS"`
	KafkaTopic                 string `env:"KAFKA_TOPIC" envDefault:"stt.utterances"`
	RelayUpstreamURL           string `env:"RELAY_UPSTREAM_URL"`
	AudioDumpDir               string `env:"AUDIO_DUMP_DIR"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPAddr:                   raw.HTTPAddr,
		SilenceTimeoutMS:           raw.SilenceTimeoutMS,
		TranscribeModel:            raw.TranscribeModel,
		TranscribeLanguage:         raw.TranscribeLanguage,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		DatabaseURL:                raw.DatabaseURL,
		KafkaBrokers:               raw.KafkaBrokers,
		KafkaTopic:                 raw.KafkaTopic,
		RelayUpstreamURL:           raw.RelayUpstreamURL,
		AudioDumpDir:               raw.AudioDumpDir,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
