package audio

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
)

// ReadWAV decodes a PCM WAV stream into a Buffer.
func ReadWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrUnsupportedFormat)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV data: %w", err)
	}

	format := Format{
		SampleRate: pcm.Format.SampleRate,
		BitDepth:   int(dec.BitDepth),
		Channels:   pcm.Format.NumChannels,
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	samples := make([]int32, len(pcm.Data))
	for i, s := range pcm.Data {
		samples[i] = int32(s)
	}

	logrus.WithFields(logrus.Fields{
		"function": "ReadWAV",
		"format":   format.String(),
		"frames":   len(samples) / format.Channels,
	}).Debug("WAV file decoded")

	return &Buffer{Format: format, Samples: samples}, nil
}

// WriteWAV encodes a Buffer as a PCM WAV stream.
func WriteWAV(w io.WriteSeeker, b *Buffer) error {
	if err := b.Validate(); err != nil {
		return err
	}

	enc := wav.NewEncoder(w, b.Format.SampleRate, b.Format.BitDepth, b.Format.Channels, 1)

	data := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		data[i] = int(s)
	}

	pcm := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			SampleRate:  b.Format.SampleRate,
			NumChannels: b.Format.Channels,
		},
		Data:           data,
		SourceBitDepth: b.Format.BitDepth,
	}

	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("failed to encode WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "WriteWAV",
		"format":   b.Format.String(),
		"frames":   b.Frames(),
	}).Debug("WAV file written")

	return nil
}
