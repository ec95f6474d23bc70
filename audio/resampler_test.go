package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearResamplerSameRateCopies(t *testing.T) {
	r, err := NewLinearResampler(44100, 44100, 2)
	require.NoError(t, err)

	in := []int32{1, 2, 3, 4}
	out, err := r.Resample(in)

	require.NoError(t, err)
	assert.Equal(t, in, out)
	out[0] = 99
	assert.Equal(t, int32(1), in[0], "same-rate path must return a copy")
}

func TestLinearResamplerDoubling(t *testing.T) {
	r, err := NewLinearResampler(22050, 44100, 1)
	require.NoError(t, err)

	out, err := r.Resample([]int32{0, 100, 200, 300})

	require.NoError(t, err)
	assert.Len(t, out, 8)
	// Interpolated midpoints land halfway between neighbors.
	assert.Equal(t, int32(0), out[0])
	assert.Equal(t, int32(50), out[1])
	assert.Equal(t, int32(100), out[2])
	assert.Equal(t, int32(150), out[3])
}

func TestLinearResamplerBatchContinuity(t *testing.T) {
	// Resampling a stream in two batches must produce the same output as
	// resampling it whole.
	signal := make([]int32, 200)
	for i := range signal {
		signal[i] = int32(i * 31)
	}

	whole, err := NewLinearResampler(44100, 48000, 1)
	require.NoError(t, err)
	wantOut, err := whole.Resample(signal)
	require.NoError(t, err)

	split, err := NewLinearResampler(44100, 48000, 1)
	require.NoError(t, err)
	first, err := split.Resample(signal[:120])
	require.NoError(t, err)
	second, err := split.Resample(signal[120:])
	require.NoError(t, err)

	got := append(first, second...)
	require.NotEmpty(t, got)
	// Batch boundaries may shift the total by one frame.
	assert.InDelta(t, len(wantOut), len(got), 1)
	limit := len(got)
	if len(wantOut) < limit {
		limit = len(wantOut)
	}
	for i := 0; i < limit; i++ {
		assert.InDelta(t, wantOut[i], got[i], 32, "sample %d", i)
	}
}

func TestLinearResamplerValidation(t *testing.T) {
	_, err := NewLinearResampler(0, 44100, 1)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewLinearResampler(44100, 48000, 3)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	r, err := NewLinearResampler(44100, 48000, 2)
	require.NoError(t, err)
	_, err = r.Resample([]int32{1, 2, 3})
	assert.ErrorIs(t, err, ErrMisalignedSamples)
}

func TestLinearResamplerReset(t *testing.T) {
	r, err := NewLinearResampler(48000, 44100, 1)
	require.NoError(t, err)

	_, err = r.Resample(make([]int32, 100))
	require.NoError(t, err)

	r.Reset()
	assert.Zero(t, r.position)
	assert.Equal(t, []int32{0}, r.lastSamples)
}
