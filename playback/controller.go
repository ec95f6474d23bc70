package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrPlaybackStalled indicates the producer stopped delivering audio for
// longer than the stall timeout while playback was still expecting data.
var ErrPlaybackStalled = errors.New("playback stalled waiting for audio data")

// ErrControllerClosed indicates a Push after CloseInput.
var ErrControllerClosed = errors.New("playback controller input is closed")

// Sink consumes packed 24-bit native-format frames.
type Sink interface {
	// Write blocks until the sink has accepted all of pcm.
	Write(pcm []byte) error
	// Close flushes and releases the sink.
	Close() error
}

// Config holds the controller's tuning knobs. Zero fields take defaults.
type Config struct {
	// QueueDepth is the number of spans buffered between producer and
	// sink. Default 16.
	QueueDepth int
	// StallTimeout is how long the consumer waits for the next span
	// before declaring the stream stalled. Default 3s.
	StallTimeout time.Duration
}

// DefaultConfig returns the default queue depth and stall timeout.
func DefaultConfig() Config {
	return Config{
		QueueDepth:   16,
		StallTimeout: 3 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QueueDepth <= 0 {
		c.QueueDepth = d.QueueDepth
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = d.StallTimeout
	}
	return c
}

// Controller pumps audio spans from a producer into a Sink through a
// bounded queue.
type Controller struct {
	sink Sink
	cfg  Config

	queue chan []byte

	closeOnce sync.Once
	failed    chan struct{} // closed when the consumer gives up
	done      chan struct{} // closed when the consumer exits

	// sendMu serializes queue sends against the channel close in
	// CloseInput. Pushers hold the read side so they do not contend with
	// each other; CloseInput takes the write side to close the channel
	// with no send in flight.
	sendMu      sync.RWMutex
	inputClosed bool

	mu  sync.Mutex
	err error
}

// New creates a controller and starts its consumer goroutine.
func New(sink Sink, cfg Config) *Controller {
	cfg = cfg.withDefaults()

	logrus.WithFields(logrus.Fields{
		"function":      "New",
		"queue_depth":   cfg.QueueDepth,
		"stall_timeout": cfg.StallTimeout,
	}).Debug("Starting playback controller")

	c := &Controller{
		sink:   sink,
		cfg:    cfg,
		queue:  make(chan []byte, cfg.QueueDepth),
		failed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Push hands one span of audio to the playback queue. It blocks while the
// queue is full, propagating backpressure to the producer, and gives up
// when ctx is done or playback has already failed.
func (c *Controller) Push(ctx context.Context, span []byte) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.inputClosed {
		return ErrControllerClosed
	}

	buf := make([]byte, len(span))
	copy(buf, span)

	select {
	case c.queue <- buf:
		return nil
	case <-c.failed:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseInput signals that no more audio is coming. The consumer drains the
// queue, flushes the sink, and exits. Safe to call more than once.
func (c *Controller) CloseInput() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.inputClosed = true
		close(c.queue)
		c.sendMu.Unlock()
	})
}

// Wait blocks until playback finishes and returns its outcome. Callers must
// have called CloseInput first or Wait blocks until the stall timeout trips.
func (c *Controller) Wait() error {
	<-c.done
	return c.Err()
}

// Err returns the playback failure, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	close(c.failed)
}

func (c *Controller) run() {
	defer close(c.done)

	for {
		select {
		case span, ok := <-c.queue:
			if !ok {
				if err := c.sink.Close(); err != nil {
					c.fail(fmt.Errorf("failed to flush sink: %w", err))
					return
				}
				logrus.WithFields(logrus.Fields{
					"function": "run",
				}).Debug("Playback drained")
				return
			}
			if err := c.sink.Write(span); err != nil {
				c.fail(fmt.Errorf("sink write failed: %w", err))
				return
			}
		case <-time.After(c.cfg.StallTimeout):
			logrus.WithFields(logrus.Fields{
				"function":      "run",
				"stall_timeout": c.cfg.StallTimeout,
			}).Error("Playback stalled")
			c.fail(ErrPlaybackStalled)
			return
		}
	}
}
