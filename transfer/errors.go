package transfer

import (
	"errors"
	"fmt"
)

// ErrBusy indicates that a transfer session is already active on the engine.
var ErrBusy = errors.New("another transfer is in progress")

// ErrNoTrack indicates that the requested slot holds no track.
var ErrNoTrack = errors.New("no track in slot")

// ErrUnexpectedChunkIndex indicates a chunk response whose index violates
// strict monotonic ordering.
var ErrUnexpectedChunkIndex = errors.New("unexpected chunk index")

// ErrSizeMismatch indicates that the received byte count disagrees with the
// size the device reported.
var ErrSizeMismatch = errors.New("received size does not match reported size")

// ErrTrailingBytes indicates leftover bytes beyond a whole number of audio
// frames at end of stream. The stream is malformed; the bytes are reported,
// never silently dropped.
var ErrTrailingBytes = errors.New("trailing bytes beyond whole frames at end of stream")

// ErrMisalignedAudio indicates upload audio whose length is not a multiple
// of the 6-byte frame size.
var ErrMisalignedAudio = errors.New("audio length is not a multiple of the frame size")

// ErrTooManyChunks indicates a track too large for the variant's chunk
// index width.
var ErrTooManyChunks = errors.New("track needs more chunks than the variant can index")

// ErrTimeout is the transient I/O timeout contract between the engine and
// its Link. Link implementations wrap their timeout conditions with it; the
// engine retries a bulk transfer once before surfacing the failure.
var ErrTimeout = errors.New("i/o timeout")

// OpError carries enough context (operation, slot, chunk index) for the
// caller to retry a failed transfer operation.
type OpError struct {
	Op    string
	Slot  int
	Chunk uint16
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s slot %d chunk %d: %v", e.Op, e.Slot, e.Chunk, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, slot int, chunk uint16, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Slot: slot, Chunk: chunk, Err: err}
}
