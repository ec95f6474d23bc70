package audio

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// monoToStereoGain is applied to both channels when a mono signal is
// duplicated into stereo, so the duplicated signal keeps the RMS power of
// the original rather than doubling it.
const monoToStereoGain = 1.0 / math.Sqrt2

// Converter reshapes PCM buffers between formats. The zero value is not
// usable; create one with NewConverter.
type Converter struct {
	// newResampler builds the rate converter for one conversion pass.
	// Defaults to NewLinearResampler.
	newResampler func(inputRate, outputRate, channels int) (Resampler, error)
}

// Option adjusts a Converter.
type Option func(*Converter)

// WithResampler replaces the default linear-interpolation resampler.
func WithResampler(factory func(inputRate, outputRate, channels int) (Resampler, error)) Option {
	return func(c *Converter) { c.newResampler = factory }
}

// NewConverter creates a format converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		newResampler: func(inputRate, outputRate, channels int) (Resampler, error) {
			return NewLinearResampler(inputRate, outputRate, channels)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert reshapes src into the target format: channel count first, then
// sample rate, then bit depth. src is not modified.
func (c *Converter) Convert(src *Buffer, target Format) (*Buffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Convert",
		"from":     src.Format.String(),
		"to":       target.String(),
		"frames":   src.Frames(),
	}).Debug("Converting audio")

	samples := src.Samples
	copied := false

	if src.Format.Channels != target.Channels {
		samples = convertChannels(samples, src.Format.Channels, target.Channels)
		copied = true
	}

	if src.Format.SampleRate != target.SampleRate {
		resampler, err := c.newResampler(src.Format.SampleRate, target.SampleRate, target.Channels)
		if err != nil {
			return nil, err
		}
		samples, err = resampler.Resample(samples)
		if err != nil {
			return nil, fmt.Errorf("resampling failed: %w", err)
		}
		copied = true
	}

	if src.Format.BitDepth != target.BitDepth {
		samples = rescaleBitDepth(samples, src.Format.BitDepth, target)
	} else if !copied {
		// No stage copied yet; don't alias the caller's slice.
		out := make([]int32, len(samples))
		copy(out, samples)
		samples = out
	}

	return &Buffer{Format: target, Samples: samples}, nil
}

// ToNative converts src to the pedal's storage format.
func (c *Converter) ToNative(src *Buffer) (*Buffer, error) {
	return c.Convert(src, Native)
}

// convertChannels duplicates mono into power-preserving stereo or averages
// stereo down to mono.
func convertChannels(samples []int32, from, to int) []int32 {
	if from == 1 && to == 2 {
		out := make([]int32, len(samples)*2)
		for i, s := range samples {
			v := int32(math.Round(float64(s) * monoToStereoGain))
			out[i*2] = v
			out[i*2+1] = v
		}
		return out
	}

	// Stereo to mono: average the pair.
	out := make([]int32, len(samples)/2)
	for i := range out {
		l := int64(samples[i*2])
		r := int64(samples[i*2+1])
		out[i] = int32((l + r) / 2)
	}
	return out
}

// rescaleBitDepth shifts samples linearly between bit depths, clamping into
// the target range.
func rescaleBitDepth(samples []int32, fromDepth int, target Format) []int32 {
	shift := target.BitDepth - fromDepth
	out := make([]int32, len(samples))
	for i, s := range samples {
		var v int64
		if shift > 0 {
			v = int64(s) << uint(shift)
		} else {
			v = int64(s) >> uint(-shift)
		}
		if v > int64(target.maxValue()) {
			v = int64(target.maxValue())
		} else if v < int64(target.minValue()) {
			v = int64(target.minValue())
		}
		out[i] = int32(v)
	}
	return out
}
