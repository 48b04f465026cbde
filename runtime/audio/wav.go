package audio

import (
	"encoding/binary"
)

const (
	wavHeaderSize      = 44
	wavFmtChunkSize    = 16
	wavChunkSizeOffset = 36
	bitsPerByte        = 8
)

// WrapPCMInWAV prepends a canonical 44-byte WAV header to raw PCM.
//
//nolint:gosec // Integer conversions are safe for audio parameters
func WrapPCMInWAV(pcm []byte, sampleRate, bitsPerSample, channels int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / bitsPerByte
	blockAlign := channels * bitsPerSample / bitsPerByte

	out := make([]byte, wavHeaderSize, wavHeaderSize+dataSize)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(wavChunkSizeOffset+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], wavFmtChunkSize)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitsPerSample))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))
	return append(out, pcm...)
}
