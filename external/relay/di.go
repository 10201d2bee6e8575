package relay

import (
	"github.com/DUBIX17/dubix-stt3/internal/config"
	"github.com/DUBIX17/dubix-stt3/internal/relay"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Forwarder, error) {
		cfg := do.MustInvoke[*config.Config](i)
		cache := do.MustInvoke[*relay.Cache](i)
		return NewForwarder(cfg.RelayUpstreamURL, cache), nil
	})
	do.Provide(injector, func(i do.Injector) (relay.Upstream, error) {
		return do.MustInvoke[*Forwarder](i), nil
	})
}
