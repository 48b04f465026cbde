package audio

import (
	"fmt"
)

// ResamplePCM16 resamples PCM16 audio from one sample rate to another using
// linear interpolation.
func ResamplePCM16(input []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: from=%d, to=%d", fromRate, toRate)
	}
	if len(input)%pcmBytesPerSample != 0 {
		return nil, fmt.Errorf("input length %d is not a multiple of %d bytes per sample", len(input), pcmBytesPerSample)
	}
	if fromRate == toRate {
		out := make([]byte, len(input))
		copy(out, input)
		return out, nil
	}

	in := PCM16Samples(input)
	if len(in) == 0 {
		return []byte{}, nil
	}
	numOut := int(float64(len(in)) * float64(toRate) / float64(fromRate))
	if numOut == 0 {
		return []byte{}, nil
	}

	out := make([]int16, numOut)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		if srcIdx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := srcPos - float64(srcIdx)
		s0 := float64(in[srcIdx])
		s1 := float64(in[srcIdx+1])
		out[i] = int16(s0 + frac*(s1-s0))
	}
	return PCM16Bytes(out), nil
}
