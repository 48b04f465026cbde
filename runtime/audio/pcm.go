package audio

import (
	"encoding/binary"
	"math"
)

// Standard audio sample rates.
const (
	SampleRate48kHz = 48000 // Browser display capture
	SampleRate24kHz = 24000 // Common TTS output rate
	SampleRate16kHz = 16000 // Common STT/ASR input rate
)

const (
	pcmBytesPerSample = 2
	pcmMaxAmplitude   = 32768.0
)

// PCM16Samples decodes 16-bit little-endian PCM. A trailing odd byte is ignored.
func PCM16Samples(data []byte) []int16 {
	n := len(data) / pcmBytesPerSample
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*pcmBytesPerSample:])) //nolint:gosec // PCM16 reinterpretation
	}
	return samples
}

// PCM16Bytes encodes samples as 16-bit little-endian PCM.
func PCM16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*pcmBytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*pcmBytesPerSample:], uint16(s)) //nolint:gosec // PCM16 reinterpretation
	}
	return out
}

// clampInt16 saturates v to the int16 range.
func clampInt16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
