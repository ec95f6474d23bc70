package protocol

import (
	"encoding/binary"
	"fmt"
)

// Native audio format of stored tracks: 44.1 kHz, 24-bit signed
// little-endian, two interleaved channels. One frame is a stereo sample
// pair, 6 bytes.
const (
	SampleRate     = 44100
	BytesPerSample = 3
	Channels       = 2
	FrameSize      = BytesPerSample * Channels
)

// Track header layout inside chunk 0 of a transfer: existence flag,
// reserved bytes, 32-bit little-endian size, reserved bytes.
const (
	TrackHeaderSize = 12
	trackSizeOffset = 4
)

// List response layout: fixed header followed by one entry per slot.
const (
	listHeaderSize = 16
	listEntrySize  = 8
)

// TrackSlot describes one of the 100 storage slots as reported by the
// device's list operation.
type TrackSlot struct {
	Slot     int
	HasTrack bool
	// RawSize is the size as reported by the device, in raw device units.
	RawSize uint32
	// Size is the true byte length after the 4/3 list-size correction.
	Size uint32
	// Duration is the track length in seconds, derived from Size.
	Duration float64
}

// CorrectedSize converts a raw device-reported list size to the true byte
// length. The device under-reports list sizes by a factor of 3/4; the
// correction must divide evenly or the report is rejected. The factor is
// empirical and applies to the list operation only.
func CorrectedSize(raw uint32) (uint32, error) {
	if raw%3 != 0 {
		return 0, fmt.Errorf("%w: raw size %d", ErrSizeNotCorrectable, raw)
	}
	return raw / 3 * 4, nil
}

// TrackDuration returns the playing time in seconds of size bytes of
// native-format audio.
func TrackDuration(size uint32) float64 {
	return float64(size) / float64(FrameSize*SampleRate)
}

// ParseTrackList parses the list response: a 16-byte header followed by 100
// entries of 8 bytes each, carrying an existence flag and a raw 32-bit
// little-endian size. Sizes of occupied slots are run through the 4/3
// correction.
func ParseTrackList(data []byte) ([]TrackSlot, error) {
	if len(data) < listHeaderSize+MaxSlots*listEntrySize {
		return nil, fmt.Errorf("%w: list response is %d bytes, want at least %d",
			ErrBadLength, len(data), listHeaderSize+MaxSlots*listEntrySize)
	}

	slots := make([]TrackSlot, 0, MaxSlots)
	offset := listHeaderSize
	for slot := 0; slot < MaxSlots; slot++ {
		entry := data[offset : offset+listEntrySize]
		ts := TrackSlot{
			Slot:     slot,
			HasTrack: entry[0] != 0x00,
			RawSize:  binary.LittleEndian.Uint32(entry[4:8]),
		}
		if ts.HasTrack {
			size, err := CorrectedSize(ts.RawSize)
			if err != nil {
				return nil, fmt.Errorf("slot %d: %w", slot, err)
			}
			ts.Size = size
			ts.Duration = TrackDuration(size)
		}
		slots = append(slots, ts)
		offset += listEntrySize
	}

	return slots, nil
}

// ParseTrackHeader parses the 12-byte inline header at the start of chunk 0
// of a download or query response. The size here is used as-is: the 4/3
// correction is documented for the list operation and is not extrapolated
// to this field.
func ParseTrackHeader(data []byte) (exists bool, size uint32, err error) {
	if len(data) < TrackHeaderSize {
		return false, 0, fmt.Errorf("%w: track header is %d bytes, want at least %d",
			ErrBadLength, len(data), TrackHeaderSize)
	}
	exists = data[0] == 0x01
	size = binary.LittleEndian.Uint32(data[trackSizeOffset : trackSizeOffset+4])
	return exists, size, nil
}

// BuildTrackHeader builds the inline header carried in chunk 0 of an upload,
// zero-padded to a full chunk.
func BuildTrackHeader(size uint32) []byte {
	chunk := make([]byte, ChunkSize)
	chunk[0] = 0x01
	binary.LittleEndian.PutUint32(chunk[trackSizeOffset:], size)
	return chunk
}
