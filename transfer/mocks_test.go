package transfer

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/looperkit/gl100/protocol"
)

// mockLink emulates the pedal's endpoint behavior in memory: commands route
// subsequent bulk reads and writes, tracks live in a slot map, and uploads
// are assembled from their chunks so a verify query sees the committed
// track. Failure injection covers the timeout and desynchronization paths.
type mockLink struct {
	variant protocol.Variant

	mu     sync.Mutex
	tracks map[int][]byte

	// listSizes overrides the raw sizes reported by the list operation,
	// letting tests exercise size correction without materializing audio.
	listSizes map[int]uint32

	pendingRead  *protocol.CommandPacket
	uploadSlot   int
	uploadChunks map[uint16][]byte
	pendingWrite *protocol.CommandPacket

	downloadCmds int
	lastPlay     *protocol.CommandPacket

	// indexSeq, when non-empty, replaces the chunk index reported for
	// successive audio chunk reads, simulating a desynchronized link.
	indexSeq []uint16

	// failReads makes the next n ReadChunk calls fail with ErrTimeout.
	failReads int
	// failWrites makes the next n WriteChunk calls fail with ErrTimeout.
	failWrites int
	// statusErr is returned by every ReadStatus call when set.
	statusErr error
}

func newMockLink(variant protocol.Variant) *mockLink {
	return &mockLink{
		variant:      variant,
		tracks:       make(map[int][]byte),
		uploadChunks: make(map[uint16][]byte),
	}
}

func (m *mockLink) Command(ctx context.Context, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pkt, err := protocol.Decode(m.variant, raw)
	if err != nil {
		return err
	}

	switch pkt.Type {
	case protocol.TypeUploadInit:
		m.uploadChunks = make(map[uint16][]byte)
	case protocol.TypeDelete:
		delete(m.tracks, int(pkt.Arg1))
	case protocol.TypeTrackOps:
		switch pkt.Subcommand {
		case protocol.SubDownload, protocol.SubList:
			m.pendingRead = pkt
			if pkt.Subcommand == protocol.SubDownload {
				m.downloadCmds++
			}
		case protocol.SubUpload:
			m.pendingWrite = pkt
			m.uploadSlot = int(pkt.Arg1)
		case protocol.SubPlay:
			m.lastPlay = pkt
		}
	}
	return nil
}

func (m *mockLink) ReadStatus(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return make([]byte, protocol.PacketSize), nil
}

func (m *mockLink) ReadChunk(ctx context.Context) (ChunkResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failReads > 0 {
		m.failReads--
		return ChunkResponse{}, ErrTimeout
	}

	pkt := m.pendingRead
	if pkt == nil {
		return ChunkResponse{}, ErrTimeout
	}

	if pkt.Subcommand == protocol.SubList {
		return ChunkResponse{Data: m.buildListResponse()}, nil
	}

	slot := int(pkt.Arg1)
	chunk := pkt.Arg2
	audio := m.tracks[slot]

	if chunk == 0 {
		data := make([]byte, protocol.ChunkSize)
		if len(audio) > 0 {
			data[0] = 0x01
			binary.LittleEndian.PutUint32(data[4:], uint32(len(audio)))
		}
		return ChunkResponse{Index: 0, Data: data}, nil
	}

	index := chunk
	if len(m.indexSeq) > 0 {
		index = m.indexSeq[0]
		m.indexSeq = m.indexSeq[1:]
	}

	start := int(chunk-1) * protocol.ChunkSize
	end := start + protocol.ChunkSize
	data := make([]byte, protocol.ChunkSize)
	if start < len(audio) {
		if end > len(audio) {
			end = len(audio)
		}
		copy(data, audio[start:end])
	}
	return ChunkResponse{Index: index, Data: data}, nil
}

func (m *mockLink) WriteChunk(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites > 0 {
		m.failWrites--
		return ErrTimeout
	}

	if m.pendingWrite == nil {
		return ErrTimeout
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	m.uploadChunks[m.pendingWrite.Arg2] = buf
	m.pendingWrite = nil

	m.assembleUpload()
	return nil
}

// assembleUpload commits a finished upload to the slot map once the header
// and every audio chunk it announces are present.
func (m *mockLink) assembleUpload() {
	header, ok := m.uploadChunks[0]
	if !ok || len(header) < protocol.TrackHeaderSize {
		return
	}
	size := binary.LittleEndian.Uint32(header[4:8])
	chunks := (int(size) + protocol.ChunkSize - 1) / protocol.ChunkSize

	audio := make([]byte, 0, size)
	for i := 1; i <= chunks; i++ {
		data, ok := m.uploadChunks[uint16(i)]
		if !ok {
			return
		}
		audio = append(audio, data...)
	}
	m.tracks[m.uploadSlot] = audio[:size]
}

func (m *mockLink) buildListResponse() []byte {
	data := make([]byte, 16+protocol.MaxSlots*8)
	for slot := 0; slot < protocol.MaxSlots; slot++ {
		entry := data[16+slot*8:]
		if raw, ok := m.listSizes[slot]; ok {
			entry[0] = 0x01
			binary.LittleEndian.PutUint32(entry[4:8], raw)
			continue
		}
		if audio, ok := m.tracks[slot]; ok {
			entry[0] = 0x01
			binary.LittleEndian.PutUint32(entry[4:8], uint32(len(audio))/4*3)
		}
	}
	return data
}
