package session

import (
	"github.com/DUBIX17/dubix-stt3/internal/config"
	"github.com/DUBIX17/dubix-stt3/internal/events"
	"github.com/DUBIX17/dubix-stt3/internal/metrics"
	"github.com/DUBIX17/dubix-stt3/internal/repository"
	"github.com/DUBIX17/dubix-stt3/internal/transcriber"
	"github.com/DUBIX17/dubix-stt3/internal/transcript"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Store, error) {
		return NewStore(), nil
	})
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[*Store](i)
		transcripts := do.MustInvoke[*transcript.Store](i)
		stt := do.MustInvoke[transcriber.Transcriber](i)
		repo := do.MustInvoke[repository.Repository](i)
		publisher := do.MustInvoke[events.Publisher](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewManager(cfg, store, transcripts, stt, repo, publisher, m), nil
	})
}
