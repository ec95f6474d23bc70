package gl100

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/looperkit/gl100/audio"
	"github.com/looperkit/gl100/config"
	"github.com/looperkit/gl100/playback"
	"github.com/looperkit/gl100/protocol"
	"github.com/looperkit/gl100/transfer"
	"github.com/looperkit/gl100/usb"
)

// Progress mirrors transfer.Progress for callers that don't import the
// transfer package directly.
type Progress = transfer.Progress

// Track mirrors protocol.TrackSlot.
type Track = protocol.TrackSlot

// Client is the high-level pedal API. It owns the device session, the
// transfer engine, and an audio converter, and is safe for concurrent use;
// overlapping transfers fail with transfer.ErrBusy rather than interleaving.
type Client struct {
	engine    *transfer.Engine
	converter *audio.Converter
	cfg       config.Config
	closer    io.Closer
}

// New opens the first attached pedal matching cfg and wraps it in a Client.
func New(cfg config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := cfg.USBOptions()
	if err != nil {
		return nil, err
	}

	session, err := usb.Open(opts)
	if err != nil {
		return nil, err
	}

	client := newClient(session, session.Variant(), cfg)
	client.closer = session
	return client, nil
}

// NewFromLink builds a Client on an existing transport, for custom links
// and tests.
func NewFromLink(link transfer.Link, variant protocol.Variant, cfg config.Config) *Client {
	return newClient(link, variant, cfg)
}

func newClient(link transfer.Link, variant protocol.Variant, cfg config.Config) *Client {
	return &Client{
		engine:    transfer.NewEngine(link, variant, cfg.TransferConfig()),
		converter: audio.NewConverter(),
		cfg:       cfg,
	}
}

// Close releases the device session.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// ListTracks reports the occupancy, size, and duration of all 100 slots.
func (c *Client) ListTracks(ctx context.Context) ([]Track, error) {
	return c.engine.List(ctx)
}

// QueryTrack reports one slot's occupancy, size, and duration.
func (c *Client) QueryTrack(ctx context.Context, slot int) (Track, error) {
	return c.engine.Query(ctx, slot)
}

// DownloadTrack fetches the track in slot and returns it decoded into the
// pedal's native format.
func (c *Client) DownloadTrack(ctx context.Context, slot int, progress Progress) (*audio.Buffer, error) {
	var raw bytes.Buffer
	err := c.engine.Download(ctx, slot, func(span []byte) error {
		raw.Write(span)
		return nil
	}, progress)
	if err != nil {
		return nil, err
	}

	samples, err := audio.DecodePCM24(raw.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to decode track audio: %w", err)
	}
	return &audio.Buffer{Format: audio.Native, Samples: samples}, nil
}

// UploadTrack converts buf to the pedal's native format and sends it to
// slot.
func (c *Client) UploadTrack(ctx context.Context, slot int, buf *audio.Buffer, progress Progress) error {
	native, err := c.converter.ToNative(buf)
	if err != nil {
		return fmt.Errorf("failed to convert audio for upload: %w", err)
	}
	return c.engine.Upload(ctx, slot, audio.EncodePCM24(native.Samples), progress)
}

// DeleteTrack erases the track in slot.
func (c *Client) DeleteTrack(ctx context.Context, slot int) error {
	return c.engine.Delete(ctx, slot)
}

// PlayTrack starts playback of slot on the pedal itself.
func (c *Client) PlayTrack(ctx context.Context, slot int) error {
	return c.engine.Play(ctx, slot)
}

// StopTrack stops playback of slot on the pedal.
func (c *Client) StopTrack(ctx context.Context, slot int) error {
	return c.engine.Stop(ctx, slot)
}

// StreamTrack downloads slot and plays it through sink as the chunks
// arrive. The playback queue's backpressure throttles the USB transfer;
// a producer silence longer than the configured stall timeout aborts with
// playback.ErrPlaybackStalled.
func (c *Client) StreamTrack(ctx context.Context, slot int, sink playback.Sink, progress Progress) error {
	controller := playback.New(sink, c.cfg.PlaybackConfig())

	downloadErr := c.engine.Download(ctx, slot, func(span []byte) error {
		return controller.Push(ctx, span)
	}, progress)

	controller.CloseInput()
	playErr := controller.Wait()

	if downloadErr != nil {
		logrus.WithFields(logrus.Fields{
			"function": "StreamTrack",
			"slot":     slot,
			"error":    downloadErr.Error(),
		}).Error("Streaming download failed")
		return downloadErr
	}
	return playErr
}
