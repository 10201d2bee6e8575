package session

import "time"

const (
	DefaultID = "default"

	warmUpActiveMS = 2000
)

type Session struct {
	ID                    string
	SampleRate            int
	AudioChunks           [][]byte
	LastActivityAt        time.Time
	HasSpokenEnough       bool
	ActiveAudioDurationMS int64
	CreatedAt             time.Time
}

func (s *Session) silentFor(now time.Time, timeout time.Duration) bool {
	return s.HasSpokenEnough && now.Sub(s.LastActivityAt) > timeout
}

func (s *Session) audioBytes() int {
	total := 0
	for _, chunk := range s.AudioChunks {
		total += len(chunk)
	}
	return total
}

func (s *Session) concatAudio() []byte {
	buf := make([]byte, 0, s.audioBytes())
	for _, chunk := range s.AudioChunks {
		buf = append(buf, chunk...)
	}
	return buf
}
