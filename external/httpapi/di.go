package httpapi

import (
	"github.com/DUBIX17/dubix-stt3/internal/metrics"
	"github.com/DUBIX17/dubix-stt3/internal/relay"
	"github.com/DUBIX17/dubix-stt3/internal/session"
	"github.com/DUBIX17/dubix-stt3/internal/transcript"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		manager := do.MustInvoke[*session.Manager](i)
		transcripts := do.MustInvoke[*transcript.Store](i)
		relayCache := do.MustInvoke[*relay.Cache](i)
		upstream := do.MustInvoke[relay.Upstream](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewServer(manager, transcripts, relayCache, upstream, m), nil
	})
}
