package transcriber

import "context"

type Request struct {
	Audio      []byte
	SampleRate int
	Model      string
	Language   string
}

type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (string, error)
}
