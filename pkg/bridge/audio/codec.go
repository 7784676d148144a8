// Package audio converts between raw 16-bit signed little-endian PCM and the
// base64 wire framing used by both the browser protocol and the speech-model
// protocol. Input and output legs of a session run at different sample rates
// and must never be conflated; every function takes the rate it operates at.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultInputRateHz is the microphone leg rate.
	DefaultInputRateHz = 16000
	// DefaultOutputRateHz is the playback leg rate.
	DefaultOutputRateHz = 24000

	bytesPerSample = 2
)

var ErrOddFrameLength = errors.New("pcm frame length must be a multiple of 2")

// EncodeFrame wraps a buffer of 16-bit PCM samples into the base64 wire form.
func EncodeFrame(pcm []byte, sampleRate int) (string, error) {
	if sampleRate <= 0 {
		return "", fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}
	if len(pcm)%bytesPerSample != 0 {
		return "", ErrOddFrameLength
	}
	return base64.StdEncoding.EncodeToString(pcm), nil
}

// DecodeFrame is the inverse of EncodeFrame. The round trip is bit-exact for
// well-formed input.
func DecodeFrame(frame string, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}
	pcm, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio frame: %w", err)
	}
	if len(pcm)%bytesPerSample != 0 {
		return nil, ErrOddFrameLength
	}
	return pcm, nil
}

// Duration reports how long a PCM buffer plays for at the given rate.
func Duration(pcmBytes int, sampleRate int) time.Duration {
	if sampleRate <= 0 || pcmBytes <= 0 {
		return 0
	}
	samples := pcmBytes / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// RMSEnergy computes the root-mean-square energy of 16-bit signed
// little-endian PCM, normalized to 0.0..1.0.
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / bytesPerSample
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += bytesPerSample {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(samples))
}
