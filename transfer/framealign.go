package transfer

// FrameAligner re-blocks an arbitrary byte stream into spans that are exact
// multiples of the audio frame size. The 1024-byte chunk size is not a
// multiple of the 6-byte stereo frame, so each chunk can leave up to 5
// carried-over bytes that must be prepended to the next chunk before any
// bytes are handed downstream.
type FrameAligner struct {
	frameSize int
	remainder []byte
}

// NewFrameAligner creates an aligner for the given frame size.
func NewFrameAligner(frameSize int) *FrameAligner {
	return &FrameAligner{
		frameSize: frameSize,
		remainder: make([]byte, 0, frameSize),
	}
}

// Push appends data after any carried-over bytes and returns the longest
// prefix that is a whole number of frames. The trailing partial frame, if
// any, is retained for the next call. The returned slice is freshly
// allocated and safe to hold across calls.
func (a *FrameAligner) Push(data []byte) []byte {
	combined := make([]byte, 0, len(a.remainder)+len(data))
	combined = append(combined, a.remainder...)
	combined = append(combined, data...)

	aligned := len(combined) / a.frameSize * a.frameSize
	a.remainder = append(a.remainder[:0], combined[aligned:]...)

	return combined[:aligned]
}

// Pending returns the number of carried-over bytes awaiting completion of a
// frame. A nonzero value at true end of stream means the transfer was
// malformed.
func (a *FrameAligner) Pending() int {
	return len(a.remainder)
}

// Reset discards any carried-over bytes.
func (a *FrameAligner) Reset() {
	a.remainder = a.remainder[:0]
}
