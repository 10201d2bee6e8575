package audio

import (
	"encoding/binary"
	"math"
)

const (
	// ActivityThreshold separates active speech from silence: chunks with a
	// normalized loudness strictly above it count as speech.
	ActivityThreshold = 0.02

	maxSampleValue = 32768.0
	bytesPerSample = 2
)

// Loudness returns the normalized RMS level of a buffer of S16LE samples,
// in [0, 1]. An odd trailing byte is dropped.
func Loudness(buf []byte) float64 {
	sampleCount := len(buf) / bytesPerSample
	if sampleCount == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i < sampleCount*bytesPerSample; i += bytesPerSample {
		s := int16(binary.LittleEndian.Uint16(buf[i : i+bytesPerSample]))
		sumSquares += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSquares/float64(sampleCount)) / maxSampleValue
	if rms > 1 {
		rms = 1
	}
	return rms
}

func IsActive(loudness float64) bool {
	return loudness > ActivityThreshold
}

// DurationMS returns the play time in milliseconds implied by byteLen bytes
// of S16LE audio at sampleRate Hz. A non-positive rate yields 0.
func DurationMS(byteLen, sampleRate int) int64 {
	if sampleRate <= 0 {
		return 0
	}
	samples := int64(byteLen / bytesPerSample)
	return samples * 1000 / int64(sampleRate)
}
