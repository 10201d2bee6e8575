package transcriber

import (
	"github.com/DUBIX17/dubix-stt3/internal/config"
	"github.com/DUBIX17/dubix-stt3/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Transcriber, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewCloudSpeechTranscriber(CloudSpeechConfig{
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
		}), nil
	})
}
