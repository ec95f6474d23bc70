package transfer

import "context"

// ChunkResponse is one bulk read from the data-in endpoint. Index is the
// chunk index the response answers; sessions derive it from the routing of
// the preceding command, so the engine can detect a desynchronized link.
type ChunkResponse struct {
	Index uint16
	Data  []byte
}

// Link is the serialized device I/O the engine drives. Implementations own
// the endpoint set and execute one call at a time; the usb package provides
// the real device-backed implementation. Timeout conditions must be wrapped
// with ErrTimeout so the engine can retry transient ones.
type Link interface {
	// Command writes a 64-byte packet to the command-out endpoint.
	Command(ctx context.Context, pkt []byte) error

	// ReadStatus reads one acknowledgment packet from the status-in endpoint.
	ReadStatus(ctx context.Context) ([]byte, error)

	// ReadChunk reads up to one chunk from the data-in endpoint.
	ReadChunk(ctx context.Context) (ChunkResponse, error)

	// WriteChunk writes one chunk to the data-out endpoint.
	WriteChunk(ctx context.Context, data []byte) error
}
