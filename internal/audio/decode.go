// Package audio decodes reference WAV payloads into the mono 24 kHz
// float32 sample buffer the preprocessing graph expects.
package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
)

// TargetSampleRate is the fixed rate every reference buffer is
// converted to before conditioning.
const TargetSampleRate = 24000

// ExpectedBitDepth is the only PCM sample width accepted from callers.
const ExpectedBitDepth = 16

// ErrFormatMismatch is returned when a decoded WAV does not match the
// supported format.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// DecodeSamples decodes WAV bytes into mono float32 samples at
// TargetSampleRate. Multi-channel input is mixed down; other sample
// rates are linearly resampled.
func DecodeSamples(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, errors.New("empty WAV input")
	}

	r := bytes.NewReader(data)
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	if dec.BitDepth != ExpectedBitDepth {
		return nil, fmt.Errorf("%w: bit depth %d, want %d", ErrFormatMismatch, dec.BitDepth, ExpectedBitDepth)
	}
	if dec.NumChans < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrFormatMismatch, dec.NumChans)
	}
	if dec.SampleRate < 1 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrFormatMismatch, dec.SampleRate)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	samples := MixdownMono(buf.Data, int(dec.NumChans))
	if int(dec.SampleRate) != TargetSampleRate {
		samples = Resample(samples, int(dec.SampleRate), TargetSampleRate)
	}

	return samples, nil
}

// MixdownMono averages interleaved channels into a single channel.
// Mono input is returned as-is.
func MixdownMono(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	out := make([]float32, frames)
	inv := 1.0 / float32(channels)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum * inv
	}

	return out
}
