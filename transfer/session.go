package transfer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Direction indicates whether a transfer moves audio to or from the device.
type Direction uint8

const (
	// DirectionUpload represents audio being sent to the device.
	DirectionUpload Direction = iota
	// DirectionDownload represents audio being fetched from the device.
	DirectionDownload
)

func (d Direction) String() string {
	if d == DirectionUpload {
		return "upload"
	}
	return "download"
}

// State represents the current phase of a transfer session.
type State uint8

const (
	// StateIdle indicates no transfer is active.
	StateIdle State = iota
	// StateInitUpload indicates the upload initialization command is in flight.
	StateInitUpload
	// StateSendingChunks indicates upload chunks are being written.
	StateSendingChunks
	// StateFinalizing indicates the post-upload verification query is in flight.
	StateFinalizing
	// StateRequestingChunk indicates a download chunk request is in flight.
	StateRequestingChunk
	// StateParsingHeader indicates the inline track header is being parsed.
	StateParsingHeader
	// StateComplete indicates the transfer finished successfully.
	StateComplete
	// StateFailed indicates the transfer aborted on a protocol or timeout error.
	StateFailed
)

// Session tracks one in-flight transfer: direction, target slot, the
// monotonically increasing chunk cursor, size bookkeeping, and the frame
// aligner carrying partial frames across chunk boundaries. A session is
// created at transfer start and destroyed on completion, cancellation, or
// fatal error.
type Session struct {
	Direction Direction
	Slot      int

	mu            sync.Mutex
	state         State
	cursor        uint16 // next chunk index
	lastIndex     uint16 // highest index seen in a response
	seenIndex     bool
	total         uint64 // expected bytes
	transferred   uint64
	aligner       *FrameAligner
	startTime     time.Time
	lastChunkTime time.Time
	speed         float64 // bytes per second, exponential moving average
}

func newSession(dir Direction, slot, frameSize int) *Session {
	now := time.Now()
	s := &Session{
		Direction:     dir,
		Slot:          slot,
		state:         StateIdle,
		aligner:       NewFrameAligner(frameSize),
		startTime:     now,
		lastChunkTime: now,
	}

	logrus.WithFields(logrus.Fields{
		"function":  "newSession",
		"direction": dir,
		"slot":      slot,
	}).Debug("Transfer session created")

	return s
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Transferred returns the number of payload bytes moved so far.
func (s *Session) Transferred() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transferred
}

// Total returns the expected payload size in bytes.
func (s *Session) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Speed returns the smoothed transfer speed in bytes per second.
func (s *Session) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// ETA estimates the time remaining at the current smoothed speed. Zero when
// the speed is not yet established or the transfer is done.
func (s *Session) ETA() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.speed <= 0 || s.transferred >= s.total {
		return 0
	}
	remaining := float64(s.total-s.transferred) / s.speed
	return time.Duration(remaining * float64(time.Second))
}

// advance records n transferred bytes and updates the speed estimate with an
// exponential moving average (alpha = 0.3).
func (s *Session) advance(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transferred += n

	now := time.Now()
	elapsed := now.Sub(s.lastChunkTime).Seconds()
	if elapsed > 0 {
		instant := float64(n) / elapsed
		if s.speed == 0 {
			s.speed = instant
		} else {
			s.speed = 0.7*s.speed + 0.3*instant
		}
	}
	s.lastChunkTime = now
}

// checkIndex enforces strict monotonic increase of response chunk indexes.
func (s *Session) checkIndex(index uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seenIndex && index <= s.lastIndex {
		return opError(s.Direction.String(), s.Slot, index, ErrUnexpectedChunkIndex)
	}
	s.lastIndex = index
	s.seenIndex = true
	return nil
}
