// Package playback streams native-format audio to the host's sound output
// while it is still being downloaded from the pedal.
//
// A Controller sits between a producer (the transfer engine's download
// callback) and a Sink (a PulseAudio stream, or anything else accepting
// packed 24-bit frames). The queue between them is bounded: when the sink
// falls behind, Push blocks and the backpressure propagates into the USB
// transfer. When the producer falls behind for longer than the stall
// timeout, playback aborts with ErrPlaybackStalled.
package playback
