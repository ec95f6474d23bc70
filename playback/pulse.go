package playback

import (
	"fmt"
	"io"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"github.com/sirupsen/logrus"

	"github.com/looperkit/gl100/protocol"
)

// PulseSink plays native-format frames through a PulseAudio stream. The
// pedal's packed 24-bit samples are widened to 32-bit on the way in, since
// PulseAudio has no packed 24-bit little-endian format on the wire here.
type PulseSink struct {
	client *pulse.Client
	stream *pulse.PlaybackStream
	pw     *io.PipeWriter
}

// NewPulseSink connects to the local PulseAudio server and opens a stereo
// 44.1 kHz playback stream.
func NewPulseSink() (*PulseSink, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("gl100"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pulseaudio: %w", err)
	}

	pr, pw := io.Pipe()
	stream, err := client.NewPlayback(
		pulse.NewReader(pr, proto.FormatInt32LE),
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(protocol.SampleRate),
	)
	if err != nil {
		pw.Close()
		client.Close()
		return nil, fmt.Errorf("failed to open playback stream: %w", err)
	}
	stream.Start()

	logrus.WithFields(logrus.Fields{
		"function":    "NewPulseSink",
		"sample_rate": protocol.SampleRate,
	}).Info("PulseAudio playback stream opened")

	return &PulseSink{client: client, stream: stream, pw: pw}, nil
}

// Write widens packed 24-bit frames to 32-bit and feeds them to the stream.
// It blocks until PulseAudio has consumed the data, which is what lets the
// controller's queue apply backpressure.
func (s *PulseSink) Write(pcm []byte) error {
	if len(pcm)%3 != 0 {
		return fmt.Errorf("pcm data is %d bytes, not whole 24-bit samples", len(pcm))
	}

	wide := make([]byte, len(pcm)/3*4)
	for i := 0; i < len(pcm)/3; i++ {
		// Place the 24 significant bits in the top of the 32-bit word.
		wide[i*4] = 0
		wide[i*4+1] = pcm[i*3]
		wide[i*4+2] = pcm[i*3+1]
		wide[i*4+3] = pcm[i*3+2]
	}

	if _, err := s.pw.Write(wide); err != nil {
		return fmt.Errorf("failed to write to playback stream: %w", err)
	}
	return nil
}

// Close drains the stream and disconnects from the server.
func (s *PulseSink) Close() error {
	s.pw.Close()
	s.stream.Drain()
	s.stream.Close()
	s.client.Close()

	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Debug("PulseAudio stream closed")

	return nil
}
