package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/looperkit/gl100/protocol"
)

// Progress is invoked with the number of payload bytes moved and the total
// expected. Invocations are throttled to roughly every ten chunks plus a
// final call.
type Progress func(transferred, total uint64)

// progressInterval is how many chunks pass between progress callbacks.
const progressInterval = 10

// Config holds the engine's timing parameters. Zero fields take the
// documented defaults.
type Config struct {
	// ShortTimeout bounds fire-and-forget and query commands. Default 1s.
	ShortTimeout time.Duration
	// ChunkTimeout bounds each bulk chunk transfer. Default 5s.
	ChunkTimeout time.Duration
	// SettleDelay is the pause granted to the device after upload
	// initialization and before the finalize query. Default 1s.
	SettleDelay time.Duration
}

// DefaultConfig returns the documented timing defaults.
func DefaultConfig() Config {
	return Config{
		ShortTimeout: 1 * time.Second,
		ChunkTimeout: 5 * time.Second,
		SettleDelay:  1 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ShortTimeout <= 0 {
		c.ShortTimeout = d.ShortTimeout
	}
	if c.ChunkTimeout <= 0 {
		c.ChunkTimeout = d.ChunkTimeout
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	return c
}

// Engine drives chunked uploads and downloads over a Link. One operation of
// any kind is active at a time: the device pairs each command with its
// response traffic, so even a short query dispatched mid-transfer would
// desynchronize the data endpoint. Concurrent callers receive ErrBusy
// rather than interleaving commands to the device.
type Engine struct {
	link    Link
	variant protocol.Variant
	cfg     Config

	mu     sync.Mutex
	busy   bool
	active *Session // non-nil while the busy operation is a transfer
}

// NewEngine creates a transfer engine for the given link and protocol
// variant. The variant is fixed for the engine's lifetime.
func NewEngine(link Link, variant protocol.Variant, cfg Config) *Engine {
	logrus.WithFields(logrus.Fields{
		"function": "NewEngine",
		"variant":  variant.String(),
	}).Info("Creating transfer engine")

	return &Engine{
		link:    link,
		variant: variant,
		cfg:     cfg.withDefaults(),
	}
}

// Variant returns the protocol variant the engine was created with.
func (e *Engine) Variant() protocol.Variant { return e.variant }

// begin claims the engine for one short operation. Every public operation
// goes through begin or acquire so no two can interleave their command and
// response traffic.
func (e *Engine) begin(op string, slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.busy {
		return opError(op, slot, 0, ErrBusy)
	}
	e.busy = true
	return nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

func (e *Engine) acquire(dir Direction, slot int) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.busy {
		return nil, opError(dir.String(), slot, 0, ErrBusy)
	}
	s := newSession(dir, slot, protocol.FrameSize)
	e.busy = true
	e.active = s
	return s, nil
}

func (e *Engine) release(s *Session, err error) {
	if err != nil {
		s.setState(StateFailed)
	}

	e.mu.Lock()
	e.busy = false
	e.active = nil
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "release",
		"direction":   s.Direction.String(),
		"slot":        s.Slot,
		"transferred": s.Transferred(),
		"failed":      err != nil,
	}).Debug("Transfer session released")
}

// sendCommand writes a command packet under the short timeout.
func (e *Engine) sendCommand(ctx context.Context, pkt []byte) error {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.ShortTimeout)
	defer cancel()
	return e.link.Command(cctx, pkt)
}

// readStatusTolerant drains one acknowledgment. A missing acknowledgment is
// not an error on this path; other failures propagate.
func (e *Engine) readStatusTolerant(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.ShortTimeout)
	defer cancel()

	_, err := e.link.ReadStatus(sctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		logrus.WithFields(logrus.Fields{
			"function": "readStatusTolerant",
		}).Debug("No acknowledgment received, continuing")
		return nil
	}
	return err
}

// readChunkRetry reads one bulk chunk under the chunk timeout, retrying a
// single transient timeout before surfacing the failure.
func (e *Engine) readChunkRetry(ctx context.Context) (ChunkResponse, error) {
	resp, err := e.readChunkOnce(ctx)
	if err != nil && isTransient(err) {
		logrus.WithFields(logrus.Fields{
			"function": "readChunkRetry",
			"error":    err.Error(),
		}).Warn("Bulk read timed out, retrying once")
		resp, err = e.readChunkOnce(ctx)
	}
	return resp, err
}

func (e *Engine) readChunkOnce(ctx context.Context) (ChunkResponse, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.ChunkTimeout)
	defer cancel()
	return e.link.ReadChunk(rctx)
}

// writeChunkRetry writes one bulk chunk under the chunk timeout, retrying a
// single transient timeout.
func (e *Engine) writeChunkRetry(ctx context.Context, data []byte) error {
	err := e.writeChunkOnce(ctx, data)
	if err != nil && isTransient(err) {
		logrus.WithFields(logrus.Fields{
			"function": "writeChunkRetry",
			"error":    err.Error(),
		}).Warn("Bulk write timed out, retrying once")
		err = e.writeChunkOnce(ctx, data)
	}
	return err
}

func (e *Engine) writeChunkOnce(ctx context.Context, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, e.cfg.ChunkTimeout)
	defer cancel()
	return e.link.WriteChunk(wctx, data)
}

// isTransient reports whether err is a timeout worth one automatic retry.
// Cancellation and disconnection are not transient.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) settle(ctx context.Context) error {
	if e.cfg.SettleDelay == 0 {
		return nil
	}
	select {
	case <-time.After(e.cfg.SettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List queries all 100 slots and returns their corrected sizes.
func (e *Engine) List(ctx context.Context) ([]protocol.TrackSlot, error) {
	if err := e.begin("list", 0); err != nil {
		return nil, err
	}
	defer e.end()

	logrus.WithFields(logrus.Fields{
		"function": "List",
	}).Info("Listing tracks")

	pkt, err := protocol.ListCommand(e.variant)
	if err != nil {
		return nil, err
	}
	if err := e.sendCommand(ctx, pkt); err != nil {
		return nil, opError("list", 0, 0, err)
	}

	resp, err := e.readChunkRetry(ctx)
	if err != nil {
		return nil, opError("list", 0, 0, err)
	}

	slots, err := protocol.ParseTrackList(resp.Data)
	if err != nil {
		return nil, opError("list", 0, 0, err)
	}

	occupied := 0
	for _, s := range slots {
		if s.HasTrack {
			occupied++
		}
	}
	logrus.WithFields(logrus.Fields{
		"function": "List",
		"occupied": occupied,
	}).Info("Track list retrieved")

	return slots, nil
}

// Query fetches the inline track header for one slot. The reported size is
// used as-is; the list operation's 4/3 correction does not apply here.
func (e *Engine) Query(ctx context.Context, slot int) (protocol.TrackSlot, error) {
	if err := e.begin("query", slot); err != nil {
		return protocol.TrackSlot{}, err
	}
	defer e.end()

	return e.query(ctx, slot)
}

// query is the unguarded track-info fetch, shared by Query and the
// upload-finalize verification, which already holds the engine.
func (e *Engine) query(ctx context.Context, slot int) (protocol.TrackSlot, error) {
	pkt, err := protocol.QueryCommand(e.variant, slot)
	if err != nil {
		return protocol.TrackSlot{}, err
	}
	if err := e.sendCommand(ctx, pkt); err != nil {
		return protocol.TrackSlot{}, opError("query", slot, 0, err)
	}

	resp, err := e.readChunkRetry(ctx)
	if err != nil {
		return protocol.TrackSlot{}, opError("query", slot, 0, err)
	}

	exists, size, err := protocol.ParseTrackHeader(resp.Data)
	if err != nil {
		return protocol.TrackSlot{}, opError("query", slot, 0, err)
	}

	ts := protocol.TrackSlot{Slot: slot, HasTrack: exists, RawSize: size, Size: size}
	if exists {
		ts.Duration = protocol.TrackDuration(size)
	}
	return ts, nil
}

// Download fetches the track in slot, emitting frame-aligned byte spans to
// emit as they arrive. Every span is an exact multiple of the 6-byte frame
// size; bytes left over beyond whole frames at end of stream fail the
// transfer with ErrTrailingBytes.
func (e *Engine) Download(ctx context.Context, slot int, emit func([]byte) error, progress Progress) error {
	session, err := e.acquire(DirectionDownload, slot)
	if err != nil {
		return err
	}

	err = e.download(ctx, session, slot, emit, progress)
	e.release(session, err)
	return err
}

func (e *Engine) download(ctx context.Context, session *Session, slot int, emit func([]byte) error, progress Progress) error {
	logrus.WithFields(logrus.Fields{
		"function": "download",
		"slot":     slot,
	}).Info("Starting download")

	// Chunk 0 carries the inline header; its audio payload is not part of
	// the stream. Audio begins at chunk 1.
	session.setState(StateRequestingChunk)
	pkt, err := protocol.QueryCommand(e.variant, slot)
	if err != nil {
		return err
	}
	if err := e.sendCommand(ctx, pkt); err != nil {
		return opError("download", slot, 0, err)
	}
	resp, err := e.readChunkRetry(ctx)
	if err != nil {
		return opError("download", slot, 0, err)
	}

	session.setState(StateParsingHeader)
	exists, size, err := protocol.ParseTrackHeader(resp.Data)
	if err != nil {
		return opError("download", slot, 0, err)
	}
	if !exists {
		return opError("download", slot, 0, ErrNoTrack)
	}

	session.mu.Lock()
	session.total = uint64(size)
	session.mu.Unlock()

	chunks := (uint64(size) + protocol.ChunkSize - 1) / protocol.ChunkSize
	if chunks > uint64(e.variant.MaxChunkIndex()) {
		return opError("download", slot, 0, fmt.Errorf("%w: %d chunks", ErrTooManyChunks, chunks))
	}

	logrus.WithFields(logrus.Fields{
		"function": "download",
		"slot":     slot,
		"size":     size,
		"chunks":   chunks,
	}).Info("Track header parsed")

	remaining := uint64(size)
	for i := uint64(1); i <= chunks; i++ {
		// Cooperative cancellation between chunks.
		if err := ctx.Err(); err != nil {
			return opError("download", slot, uint16(i), err)
		}

		session.setState(StateRequestingChunk)
		pkt, err := protocol.DownloadCommand(e.variant, slot, uint16(i))
		if err != nil {
			return opError("download", slot, uint16(i), err)
		}
		if err := e.sendCommand(ctx, pkt); err != nil {
			return opError("download", slot, uint16(i), err)
		}

		resp, err := e.readChunkRetry(ctx)
		if err != nil {
			return opError("download", slot, uint16(i), err)
		}
		if len(resp.Data) == 0 {
			return opError("download", slot, uint16(i), ErrSizeMismatch)
		}
		if err := session.checkIndex(resp.Index); err != nil {
			return err
		}

		n := uint64(len(resp.Data))
		if n > remaining {
			n = remaining
		}

		aligned := session.aligner.Push(resp.Data[:n])
		if len(aligned) > 0 && emit != nil {
			if err := emit(aligned); err != nil {
				return opError("download", slot, uint16(i), err)
			}
		}

		session.advance(n)
		remaining -= n

		if i%progressInterval == 0 {
			if progress != nil {
				progress(session.Transferred(), session.Total())
			}
			logrus.WithFields(logrus.Fields{
				"function":    "download",
				"slot":        slot,
				"transferred": session.Transferred(),
				"total":       session.Total(),
				"eta":         session.ETA().Round(time.Second),
			}).Debug("Download progress")
		}
	}

	if progress != nil {
		progress(session.Transferred(), session.Total())
	}

	if remaining > 0 {
		return opError("download", slot, uint16(chunks), ErrSizeMismatch)
	}
	if pending := session.aligner.Pending(); pending > 0 {
		return opError("download", slot, uint16(chunks),
			fmt.Errorf("%w: %d bytes", ErrTrailingBytes, pending))
	}

	session.setState(StateComplete)

	logrus.WithFields(logrus.Fields{
		"function":  "download",
		"slot":      slot,
		"size":      size,
		"speed_bps": session.Speed(),
	}).Info("Download completed")

	return nil
}

// Upload sends frame-aligned device-native audio to slot. Chunk 0 carries
// the inline track header; the audio occupies chunks 1 and up, the last one
// zero-padded to a full chunk. After the final chunk the slot is queried to
// verify the device committed the track.
func (e *Engine) Upload(ctx context.Context, slot int, audio []byte, progress Progress) error {
	if len(audio)%protocol.FrameSize != 0 {
		return opError("upload", slot, 0,
			fmt.Errorf("%w: %d bytes", ErrMisalignedAudio, len(audio)))
	}

	session, err := e.acquire(DirectionUpload, slot)
	if err != nil {
		return err
	}

	err = e.upload(ctx, session, slot, audio, progress)
	e.release(session, err)
	return err
}

func (e *Engine) upload(ctx context.Context, session *Session, slot int, audio []byte, progress Progress) error {
	size := uint64(len(audio))
	audioChunks := (size + protocol.ChunkSize - 1) / protocol.ChunkSize
	if audioChunks > uint64(e.variant.MaxChunkIndex()) {
		return opError("upload", slot, 0, fmt.Errorf("%w: %d chunks", ErrTooManyChunks, audioChunks+1))
	}

	session.mu.Lock()
	session.total = size
	session.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "upload",
		"slot":     slot,
		"size":     size,
		"chunks":   audioChunks + 1,
	}).Info("Starting upload")

	session.setState(StateInitUpload)
	initPkt, err := protocol.UploadInitCommand(e.variant)
	if err != nil {
		return err
	}
	if err := e.sendCommand(ctx, initPkt); err != nil {
		return opError("upload", slot, 0, err)
	}
	if err := e.readStatusTolerant(ctx); err != nil {
		return opError("upload", slot, 0, err)
	}
	// The device needs a moment to prepare its flash before chunk traffic.
	if err := e.settle(ctx); err != nil {
		return opError("upload", slot, 0, err)
	}

	session.setState(StateSendingChunks)
	for i := uint64(0); i <= audioChunks; i++ {
		if err := ctx.Err(); err != nil {
			return opError("upload", slot, uint16(i), err)
		}

		var data []byte
		if i == 0 {
			data = protocol.BuildTrackHeader(uint32(size))
		} else {
			start := (i - 1) * protocol.ChunkSize
			end := start + protocol.ChunkSize
			if end > size {
				end = size
			}
			data = make([]byte, protocol.ChunkSize)
			copy(data, audio[start:end])
		}

		pkt, err := protocol.UploadChunkCommand(e.variant, slot, uint16(i))
		if err != nil {
			return opError("upload", slot, uint16(i), err)
		}
		if err := e.sendCommand(ctx, pkt); err != nil {
			return opError("upload", slot, uint16(i), err)
		}
		if err := e.readStatusTolerant(ctx); err != nil {
			return opError("upload", slot, uint16(i), err)
		}

		if err := e.writeChunkRetry(ctx, data); err != nil {
			return opError("upload", slot, uint16(i), err)
		}
		if err := e.readStatusTolerant(ctx); err != nil {
			return opError("upload", slot, uint16(i), err)
		}

		if i > 0 {
			start := (i - 1) * protocol.ChunkSize
			end := start + protocol.ChunkSize
			if end > size {
				end = size
			}
			session.advance(end - start)
		}

		if progress != nil && i%progressInterval == 0 {
			progress(session.Transferred(), session.Total())
		}
	}

	if progress != nil {
		progress(session.Transferred(), session.Total())
	}

	// Give the device a moment to commit, then verify with a query.
	session.setState(StateFinalizing)
	if err := e.settle(ctx); err != nil {
		return opError("upload", slot, 0, err)
	}

	verify, err := e.query(ctx, slot)
	if err != nil {
		return err
	}
	if !verify.HasTrack {
		logrus.WithFields(logrus.Fields{
			"function": "upload",
			"slot":     slot,
		}).Warn("Device reports track absent after upload")
	} else if uint64(verify.Size) != size {
		logrus.WithFields(logrus.Fields{
			"function":      "upload",
			"slot":          slot,
			"uploaded_size": size,
			"device_size":   verify.Size,
		}).Warn("Device reports different size after upload")
	}

	session.setState(StateComplete)

	logrus.WithFields(logrus.Fields{
		"function":  "upload",
		"slot":      slot,
		"size":      size,
		"speed_bps": session.Speed(),
	}).Info("Upload completed")

	return nil
}

// Delete erases the track in slot. The device acknowledges on the status
// endpoint; a missing acknowledgment fails the operation.
func (e *Engine) Delete(ctx context.Context, slot int) error {
	if err := e.begin("delete", slot); err != nil {
		return err
	}
	defer e.end()

	logrus.WithFields(logrus.Fields{
		"function": "Delete",
		"slot":     slot,
	}).Info("Deleting track")

	pkt, err := protocol.DeleteCommand(e.variant, slot)
	if err != nil {
		return err
	}
	if err := e.sendCommand(ctx, pkt); err != nil {
		return opError("delete", slot, 0, err)
	}

	sctx, cancel := context.WithTimeout(ctx, e.cfg.ShortTimeout)
	defer cancel()
	if _, err := e.link.ReadStatus(sctx); err != nil {
		return opError("delete", slot, 0, err)
	}
	return nil
}

// Play starts playback of slot on the pedal. Fire-and-forget: absence of an
// acknowledgment is not an error.
func (e *Engine) Play(ctx context.Context, slot int) error {
	if err := e.begin("play", slot); err != nil {
		return err
	}
	defer e.end()

	pkt, err := protocol.PlayCommand(e.variant, slot)
	if err != nil {
		return err
	}
	if err := e.sendCommand(ctx, pkt); err != nil {
		return opError("play", slot, 0, err)
	}
	return e.readStatusTolerant(ctx)
}

// Stop halts playback of slot on the pedal. Fire-and-forget.
func (e *Engine) Stop(ctx context.Context, slot int) error {
	if err := e.begin("stop", slot); err != nil {
		return err
	}
	defer e.end()

	pkt, err := protocol.StopCommand(e.variant, slot)
	if err != nil {
		return err
	}
	if err := e.sendCommand(ctx, pkt); err != nil {
		return opError("stop", slot, 0, err)
	}
	return e.readStatusTolerant(ctx)
}
