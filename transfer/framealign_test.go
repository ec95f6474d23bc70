package transfer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looperkit/gl100/protocol"
)

func TestFrameAlignerWholeFramesOnly(t *testing.T) {
	tests := []struct {
		name   string
		pushes []int // byte counts
	}{
		{
			name:   "chunk_sized_pushes",
			pushes: []int{1024, 1024, 1024, 1024},
		},
		{
			name:   "single_bytes",
			pushes: []int{1, 1, 1, 1, 1, 1, 1},
		},
		{
			name:   "mixed_sizes",
			pushes: []int{5, 1019, 1024, 300, 7, 717},
		},
		{
			name:   "already_aligned",
			pushes: []int{6, 600, 6000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewFrameAligner(protocol.FrameSize)

			var input, output bytes.Buffer
			next := byte(0)
			for _, n := range tt.pushes {
				data := make([]byte, n)
				for i := range data {
					data[i] = next
					next++
				}
				input.Write(data)

				out := a.Push(data)
				assert.Zero(t, len(out)%protocol.FrameSize,
					"every returned span must be whole frames")
				output.Write(out)
			}

			// Output plus carried-over remainder reconstructs the input.
			total := input.Len()
			aligned := total / protocol.FrameSize * protocol.FrameSize
			assert.Equal(t, input.Bytes()[:aligned], output.Bytes())
			assert.Equal(t, total-aligned, a.Pending())
		})
	}
}

func TestFrameAlignerCarriesRemainder(t *testing.T) {
	a := NewFrameAligner(protocol.FrameSize)

	// 1024 = 170 frames + 4 bytes carried over.
	out := a.Push(make([]byte, protocol.ChunkSize))
	assert.Len(t, out, 1020)
	assert.Equal(t, 4, a.Pending())

	// 4 carried + 1024 = 171 frames + 2 bytes.
	out = a.Push(make([]byte, protocol.ChunkSize))
	assert.Len(t, out, 1026)
	assert.Equal(t, 2, a.Pending())

	a.Reset()
	assert.Zero(t, a.Pending())
}

func TestFrameAlignerOutputIsStable(t *testing.T) {
	a := NewFrameAligner(protocol.FrameSize)

	first := a.Push([]byte{1, 2, 3, 4, 5, 6, 7})
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, first)

	// A later push must not clobber a span handed out earlier.
	a.Push([]byte{8, 9, 10, 11, 12})
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, first)
}
