package relay

type Upstream interface {
	Enabled() bool
	Forward(chunk []byte) error
	Close() error
}
