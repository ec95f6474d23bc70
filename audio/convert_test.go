package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSine builds n frames of a mono sine wave at the given amplitude.
func makeSine(n int, amplitude float64) []int32 {
	samples := make([]int32, n)
	for i := range samples {
		samples[i] = int32(amplitude * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	return samples
}

// framePower returns the root of the mean per-frame energy, summing the
// squares of all channels within a frame.
func framePower(samples []int32, channels int) float64 {
	frames := len(samples) / channels
	var sum float64
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			v := float64(samples[f*channels+ch])
			sum += v * v
		}
	}
	return math.Sqrt(sum / float64(frames))
}

func TestMonoToStereoPreservesPower(t *testing.T) {
	mono := makeSine(44100, 4_000_000)
	src := &Buffer{
		Format:  Format{SampleRate: 44100, BitDepth: 24, Channels: 1},
		Samples: mono,
	}

	out, err := NewConverter().Convert(src, Native)

	require.NoError(t, err)
	assert.Equal(t, Native, out.Format)
	require.Len(t, out.Samples, len(mono)*2)

	// Both channels carry the same signal.
	assert.Equal(t, out.Samples[0], out.Samples[1])

	monoPower := framePower(mono, 1)
	stereoPower := framePower(out.Samples, 2)
	assert.InEpsilon(t, monoPower, stereoPower, 0.01,
		"duplication must not change the signal power")
}

func TestStereoToMonoAverages(t *testing.T) {
	src := &Buffer{
		Format:  Format{SampleRate: 44100, BitDepth: 24, Channels: 2},
		Samples: []int32{100, 200, -100, 100, 500, 500},
	}

	out, err := NewConverter().Convert(src, Format{SampleRate: 44100, BitDepth: 24, Channels: 1})

	require.NoError(t, err)
	assert.Equal(t, []int32{150, 0, 500}, out.Samples)
}

func TestBitDepthRescale(t *testing.T) {
	tests := []struct {
		name      string
		fromDepth int
		toDepth   int
		in        []int32
		want      []int32
	}{
		{
			name:      "16_to_24_shifts_up",
			fromDepth: 16,
			toDepth:   24,
			in:        []int32{1, -1, 32767, -32768},
			want:      []int32{256, -256, 8388352, -8388608},
		},
		{
			name:      "24_to_16_shifts_down",
			fromDepth: 24,
			toDepth:   16,
			in:        []int32{256, -256, 8388607, -8388608},
			want:      []int32{1, -1, 32767, -32768},
		},
		{
			name:      "32_to_24_clamps_extremes",
			fromDepth: 32,
			toDepth:   24,
			in:        []int32{math.MaxInt32, math.MinInt32},
			want:      []int32{8388607, -8388608},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &Buffer{
				Format:  Format{SampleRate: 44100, BitDepth: tt.fromDepth, Channels: 2},
				Samples: tt.in,
			}

			out, err := NewConverter().Convert(src,
				Format{SampleRate: 44100, BitDepth: tt.toDepth, Channels: 2})

			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Samples)
		})
	}
}

func TestResampleChangesFrameCount(t *testing.T) {
	src := &Buffer{
		Format:  Format{SampleRate: 22050, BitDepth: 24, Channels: 1},
		Samples: makeSine(22050, 1_000_000),
	}

	out, err := NewConverter().Convert(src, Native)

	require.NoError(t, err)
	assert.Equal(t, Native, out.Format)
	// One second of input stays roughly one second of output.
	assert.InDelta(t, 44100, out.Frames(), 2)
}

func TestConvertRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		src     *Buffer
		target  Format
		wantErr error
	}{
		{
			name: "bad_bit_depth",
			src: &Buffer{
				Format:  Format{SampleRate: 44100, BitDepth: 12, Channels: 2},
				Samples: make([]int32, 4),
			},
			target:  Native,
			wantErr: ErrUnsupportedFormat,
		},
		{
			name: "too_many_channels",
			src: &Buffer{
				Format:  Format{SampleRate: 44100, BitDepth: 24, Channels: 6},
				Samples: make([]int32, 6),
			},
			target:  Native,
			wantErr: ErrUnsupportedFormat,
		},
		{
			name: "misaligned_samples",
			src: &Buffer{
				Format:  Format{SampleRate: 44100, BitDepth: 24, Channels: 2},
				Samples: make([]int32, 5),
			},
			target:  Native,
			wantErr: ErrMisalignedSamples,
		},
		{
			name: "bad_target",
			src: &Buffer{
				Format:  Format{SampleRate: 44100, BitDepth: 24, Channels: 2},
				Samples: make([]int32, 4),
			},
			target:  Format{SampleRate: 0, BitDepth: 24, Channels: 2},
			wantErr: ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConverter().Convert(tt.src, tt.target)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConvertDoesNotAliasSource(t *testing.T) {
	src := &Buffer{
		Format:  Native,
		Samples: []int32{1, 2, 3, 4, 5, 6},
	}

	out, err := NewConverter().Convert(src, Native)

	require.NoError(t, err)
	out.Samples[0] = 99
	assert.Equal(t, int32(1), src.Samples[0])
}
