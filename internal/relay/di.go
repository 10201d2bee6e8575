package relay

import "github.com/samber/do/v2"

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Cache, error) {
		return NewCache(DefaultTTL), nil
	})
}
