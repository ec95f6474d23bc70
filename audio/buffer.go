package audio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat indicates a sample rate, bit depth, or channel count
// outside what the converter handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// ErrMisalignedSamples indicates a sample slice whose length is not a
// multiple of the channel count.
var ErrMisalignedSamples = errors.New("sample count not aligned to channel count")

// Format describes interleaved PCM audio.
type Format struct {
	SampleRate int
	BitDepth   int
	Channels   int
}

// Native is the pedal's storage format: 44.1 kHz, 24-bit, stereo.
var Native = Format{SampleRate: 44100, BitDepth: 24, Channels: 2}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz / %d-bit / %dch", f.SampleRate, f.BitDepth, f.Channels)
}

// Validate checks that the format is one the converter can work with.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	switch f.BitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, f.BitDepth)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.Channels)
	}
	return nil
}

// maxValue returns the largest representable sample value.
func (f Format) maxValue() int32 {
	return int32(1)<<(f.BitDepth-1) - 1
}

// minValue returns the smallest representable sample value.
func (f Format) minValue() int32 {
	return -(int32(1) << (f.BitDepth - 1))
}

// Buffer holds interleaved PCM samples. Each int32 carries one sample scaled
// to the format's bit depth.
type Buffer struct {
	Format  Format
	Samples []int32
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Duration returns the buffer's playing time in seconds.
func (b *Buffer) Duration() float64 {
	if b.Format.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.Format.SampleRate)
}

// Validate checks the format and the sample alignment.
func (b *Buffer) Validate() error {
	if err := b.Format.Validate(); err != nil {
		return err
	}
	if len(b.Samples)%b.Format.Channels != 0 {
		return fmt.Errorf("%w: %d samples across %d channels",
			ErrMisalignedSamples, len(b.Samples), b.Format.Channels)
	}
	return nil
}
