package protocol

import "errors"

// ErrInvalidHeader indicates that a packet does not begin with the
// variant's header bytes.
var ErrInvalidHeader = errors.New("invalid packet header")

// ErrChecksumMismatch indicates that the recomputed checksum disagrees
// with the checksum carried in the packet.
var ErrChecksumMismatch = errors.New("packet checksum mismatch")

// ErrBadLength indicates a response or packet of unexpected length.
var ErrBadLength = errors.New("malformed response length")

// ErrUnknownCommand indicates a command type with no known layout.
var ErrUnknownCommand = errors.New("unknown command type")

// ErrSlotOutOfRange indicates a slot index outside [0, MaxSlots).
var ErrSlotOutOfRange = errors.New("slot index out of range")

// ErrChunkOutOfRange indicates a chunk index the selected variant cannot carry.
var ErrChunkOutOfRange = errors.New("chunk index out of range")

// ErrSizeNotCorrectable indicates a device-reported size that does not
// divide evenly under the 4/3 list-size correction.
var ErrSizeNotCorrectable = errors.New("reported size not an exact multiple under 4/3 correction")
