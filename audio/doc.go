// Package audio converts between the pedal's native track format and common
// PCM formats.
//
// Tracks are stored as 44.1 kHz, 24-bit signed little-endian stereo. The
// Converter reshapes other sample rates, bit depths, and channel counts into
// that format (and back), and the pcm24 codec maps between packed 3-byte
// wire frames and the int32 samples the rest of the package works in.
package audio
