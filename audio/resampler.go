package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resampler converts interleaved samples between sample rates. The stream
// may arrive in pieces; implementations carry interpolation state across
// calls so piecewise conversion matches whole-buffer conversion.
type Resampler interface {
	Resample(input []int32) ([]int32, error)
	Reset()
}

// LinearResampler performs linear-interpolation rate conversion. Good
// enough for transferring loops to and from a pedal; callers needing
// mastering-grade conversion can supply their own Resampler.
type LinearResampler struct {
	inputRate   int
	outputRate  int
	channels    int
	lastSamples []int32 // final frame of the previous batch
	position    float64 // fractional position in the input stream
}

// NewLinearResampler creates a resampler converting from inputRate to
// outputRate.
func NewLinearResampler(inputRate, outputRate, channels int) (*LinearResampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("%w: sample rates %d -> %d", ErrUnsupportedFormat, inputRate, outputRate)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewLinearResampler",
		"input_rate":  inputRate,
		"output_rate": outputRate,
		"channels":    channels,
	}).Debug("Creating resampler")

	return &LinearResampler{
		inputRate:   inputRate,
		outputRate:  outputRate,
		channels:    channels,
		lastSamples: make([]int32, channels),
	}, nil
}

// Resample converts one batch of interleaved samples.
func (r *LinearResampler) Resample(input []int32) ([]int32, error) {
	if len(input)%r.channels != 0 {
		return nil, fmt.Errorf("%w: %d samples across %d channels",
			ErrMisalignedSamples, len(input), r.channels)
	}

	if r.inputRate == r.outputRate {
		out := make([]int32, len(input))
		copy(out, input)
		return out, nil
	}

	ratio := float64(r.inputRate) / float64(r.outputRate)
	inputFrames := len(input) / r.channels
	outputFrames := int(float64(inputFrames)/ratio + 0.5)

	output := make([]int32, 0, outputFrames*r.channels)
	for frame := 0; frame < outputFrames; frame++ {
		idx := int(r.position)
		frac := r.position - float64(idx)

		for ch := 0; ch < r.channels; ch++ {
			output = append(output, r.interpolate(input, idx, frac, ch, inputFrames))
		}
		r.position += ratio
	}

	// Carry state into the next batch.
	r.position -= float64(inputFrames)
	if len(input) >= r.channels {
		copy(r.lastSamples, input[len(input)-r.channels:])
	}

	return output, nil
}

// interpolate returns the sample at fractional frame position idx+frac for
// one channel, falling back to the previous batch's final frame below the
// lower boundary and holding the last frame at the upper one.
func (r *LinearResampler) interpolate(input []int32, idx int, frac float64, ch, inputFrames int) int32 {
	if idx < 0 {
		return r.lastSamples[ch]
	}
	if idx >= inputFrames-1 {
		return input[(inputFrames-1)*r.channels+ch]
	}
	s1 := float64(input[idx*r.channels+ch])
	s2 := float64(input[(idx+1)*r.channels+ch])
	return int32(s1*(1.0-frac) + s2*frac)
}

// Reset clears carried interpolation state, for use at a stream boundary.
func (r *LinearResampler) Reset() {
	r.position = 0
	for i := range r.lastSamples {
		r.lastSamples[i] = 0
	}
}
