package events

import (
	"github.com/DUBIX17/dubix-stt3/internal/config"
	"github.com/DUBIX17/dubix-stt3/internal/events"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*KafkaPublisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewKafkaPublisher(cfg.KafkaBrokerList(), cfg.KafkaTopic), nil
	})
	do.Provide(injector, func(i do.Injector) (events.Publisher, error) {
		return do.MustInvoke[*KafkaPublisher](i), nil
	})
}
