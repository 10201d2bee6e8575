package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/DUBIX17/dubix-stt3/internal/transcriber"
	"google.golang.org/api/option"
)

const (
	transcribeTimeout = 60 * time.Second
	audioChannelCount = 1
)

type CloudSpeechConfig struct {
	CredentialsJSON string
}

type CloudSpeechTranscriber struct {
	credentialsJSON string
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) transcriber.Transcriber {
	return &CloudSpeechTranscriber{credentialsJSON: cfg.CredentialsJSON}
}

func (t *CloudSpeechTranscriber) Transcribe(ctx context.Context, req transcriber.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(t.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return "", fmt.Errorf("detect credentials: %w", err)
	}

	client, err := speech.NewClient(ctx, option.WithAuthCredentials(creds))
	if err != nil {
		return "", fmt.Errorf("create speech client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close speech client", "error", err)
		}
	}()

	slog.Debug("submitting recognize request",
		"audio_bytes", len(req.Audio),
		"sample_rate", req.SampleRate,
		"model", req.Model,
		"language", req.Language)

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   int32(req.SampleRate),
			AudioChannelCount: audioChannelCount,
			LanguageCode:      req.Language,
			Model:             req.Model,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: req.Audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return extractTranscript(resp), nil
}

func extractTranscript(resp *speechpb.RecognizeResponse) string {
	results := resp.GetResults()
	if len(results) == 0 {
		return ""
	}
	alternatives := results[0].GetAlternatives()
	if len(alternatives) == 0 {
		return ""
	}
	return alternatives[0].GetTranscript()
}
