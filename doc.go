// Package gl100 is a client for the Mooer GL100 looper pedal's USB track
// storage.
//
// The pedal exposes 100 track slots over a vendor bulk protocol. A Client
// lists, uploads, downloads, deletes, and plays those tracks, converting
// between the pedal's native 44.1 kHz 24-bit stereo format and common PCM
// formats on the way.
//
// # Getting Started
//
//	cfg, err := config.Load("gl100.toml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := gl100.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	tracks, err := client.ListTracks(ctx)
//	for _, track := range tracks {
//		if track.HasTrack {
//			fmt.Printf("slot %d: %.1fs\n", track.Slot, track.Duration)
//		}
//	}
//
// # Uploading and Downloading
//
// Uploads accept any PCM buffer the audio package can represent; the client
// converts to the pedal's native format before transfer:
//
//	buf, err := audio.ReadWAV(f)
//	err = client.UploadTrack(ctx, 4, buf, nil)
//
//	buf, err := client.DownloadTrack(ctx, 4, nil)
//	err = audio.WriteWAV(out, buf)
//
// # Streaming Playback
//
// StreamTrack plays a track through the host's sound output while it is
// still downloading:
//
//	sink, err := playback.NewPulseSink()
//	err = client.StreamTrack(ctx, 4, sink, nil)
//
// # Integration Architecture
//
// This package is the integration point, orchestrating:
//
//   - [protocol]: command packets, checksums, response parsing
//   - [usb]: device discovery and bulk endpoint I/O
//   - [transfer]: chunked upload/download state machines
//   - [audio]: format conversion and WAV import/export
//   - [playback]: streaming playback with backpressure
package gl100
