package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PacketSize is the fixed length of every command packet.
const PacketSize = 64

// ChunkSize is the fixed length of one bulk data chunk.
const ChunkSize = 1024

// MaxSlots is the number of track storage slots on the device.
const MaxSlots = 100

// Command types.
const (
	TypeUploadInit byte = 0x01
	TypeDelete     byte = 0x03
	TypeTrackOps   byte = 0x07
)

// Subcommands.
const (
	SubUploadInit byte = 0x86
	SubDownload   byte = 0x82
	SubUpload     byte = 0x84
	SubList       byte = 0x88
	SubDelete     byte = 0x88
	SubPlay       byte = 0x8A
)

// Play actions carried in arg1 of a play command.
const (
	PlayActionStop  uint16 = 0x00
	PlayActionStart uint16 = 0x01
)

// Variant selects the command header layout. Captured firmware uses the
// three-byte header; documentation also describes a two-byte layout with a
// narrower chunk index. A variant is chosen once per session and never mixed.
type Variant uint8

const (
	// VariantStandard uses the 3-byte header 3F AA 55 and a 16-bit
	// little-endian chunk index.
	VariantStandard Variant = iota
	// VariantCompact uses the 2-byte header AA 55 and an 8-bit chunk index.
	VariantCompact
)

var (
	headerStandard = []byte{0x3F, 0xAA, 0x55}
	headerCompact  = []byte{0xAA, 0x55}
)

// Header returns the variant's header bytes.
func (v Variant) Header() []byte {
	if v == VariantCompact {
		return headerCompact
	}
	return headerStandard
}

// ChunkIndexWidth returns the width of the chunk index field in bytes.
func (v Variant) ChunkIndexWidth() int {
	if v == VariantCompact {
		return 1
	}
	return 2
}

// MaxChunkIndex returns the largest chunk index the variant can carry.
func (v Variant) MaxChunkIndex() uint16 {
	if v == VariantCompact {
		return 0xFF
	}
	return 0xFFFF
}

func (v Variant) String() string {
	if v == VariantCompact {
		return "compact"
	}
	return "standard"
}

// checksumSpan returns the number of bytes after the header covered by the
// checksum for the given command type. Spans are empirical, taken from
// device captures.
func checksumSpan(typ byte) (int, error) {
	switch typ {
	case TypeUploadInit:
		return 3, nil
	case TypeDelete:
		return 5, nil
	case TypeTrackOps:
		return 9, nil
	default:
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, typ)
	}
}

// CommandPacket is the decoded form of a 64-byte command.
type CommandPacket struct {
	Variant    Variant
	Type       byte
	Subcommand byte
	Arg1       uint16
	Arg2       uint16
}

// Encode builds a 64-byte command packet: variant header, command type,
// reserved byte, subcommand, arg1 (16-bit little-endian), arg2 (width per
// variant), checksum big-endian after the checksummed span, zero padding.
func Encode(v Variant, typ, sub byte, arg1, arg2 uint16) ([]byte, error) {
	span, err := checksumSpan(typ)
	if err != nil {
		return nil, err
	}

	pkt := make([]byte, PacketSize)
	h := copy(pkt, v.Header())

	pkt[h] = typ
	pkt[h+1] = 0x00
	pkt[h+2] = sub
	if span > 3 {
		binary.LittleEndian.PutUint16(pkt[h+3:], arg1)
	}
	if span > 5 {
		if v.ChunkIndexWidth() == 1 {
			if arg2 > 0xFF {
				return nil, fmt.Errorf("%w: %d exceeds 8-bit field", ErrChunkOutOfRange, arg2)
			}
			pkt[h+5] = byte(arg2)
		} else {
			binary.LittleEndian.PutUint16(pkt[h+5:], arg2)
		}
	}

	crc := Checksum(pkt[h : h+span])
	binary.BigEndian.PutUint16(pkt[h+span:], crc)

	return pkt, nil
}

// Decode parses and validates a 64-byte command packet. It fails with
// ErrInvalidHeader when the header bytes do not match the variant and with
// ErrChecksumMismatch when the recomputed checksum disagrees with the one
// carried in the packet.
func Decode(v Variant, raw []byte) (*CommandPacket, error) {
	if len(raw) != PacketSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrBadLength, len(raw), PacketSize)
	}

	header := v.Header()
	if !bytes.Equal(raw[:len(header)], header) {
		return nil, fmt.Errorf("%w: % X", ErrInvalidHeader, raw[:len(header)])
	}
	h := len(header)

	typ := raw[h]
	span, err := checksumSpan(typ)
	if err != nil {
		return nil, err
	}

	want := binary.BigEndian.Uint16(raw[h+span:])
	got := Checksum(raw[h : h+span])
	if got != want {
		return nil, fmt.Errorf("%w: computed 0x%04X, packet carries 0x%04X", ErrChecksumMismatch, got, want)
	}

	pkt := &CommandPacket{
		Variant:    v,
		Type:       typ,
		Subcommand: raw[h+2],
	}
	if span > 3 {
		pkt.Arg1 = binary.LittleEndian.Uint16(raw[h+3:])
	}
	if span > 5 {
		if v.ChunkIndexWidth() == 1 {
			pkt.Arg2 = uint16(raw[h+5])
		} else {
			pkt.Arg2 = binary.LittleEndian.Uint16(raw[h+5:])
		}
	}

	return pkt, nil
}

func validateSlot(slot int) error {
	if slot < 0 || slot >= MaxSlots {
		return fmt.Errorf("%w: %d (must be 0-%d)", ErrSlotOutOfRange, slot, MaxSlots-1)
	}
	return nil
}

func validateChunk(v Variant, chunk uint16) error {
	if chunk > v.MaxChunkIndex() {
		return fmt.Errorf("%w: %d (variant %s carries at most %d)", ErrChunkOutOfRange, chunk, v, v.MaxChunkIndex())
	}
	return nil
}

// UploadInitCommand builds the command that prepares the device for an upload.
func UploadInitCommand(v Variant) ([]byte, error) {
	return Encode(v, TypeUploadInit, SubUploadInit, 0, 0)
}

// DeleteCommand builds the command that erases the track in slot.
func DeleteCommand(v Variant, slot int) ([]byte, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	return Encode(v, TypeDelete, SubDelete, uint16(slot), 0)
}

// DownloadCommand builds the per-chunk download request for slot. Chunk 0
// returns the inline track header; chunks 1 and up return audio data.
func DownloadCommand(v Variant, slot int, chunk uint16) ([]byte, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	if err := validateChunk(v, chunk); err != nil {
		return nil, err
	}
	return Encode(v, TypeTrackOps, SubDownload, uint16(slot), chunk)
}

// QueryCommand builds the track-info query for slot. It is the download
// request for chunk 0.
func QueryCommand(v Variant, slot int) ([]byte, error) {
	return DownloadCommand(v, slot, 0)
}

// UploadChunkCommand builds the command announcing the data chunk that
// follows on the data-out endpoint.
func UploadChunkCommand(v Variant, slot int, chunk uint16) ([]byte, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	if err := validateChunk(v, chunk); err != nil {
		return nil, err
	}
	return Encode(v, TypeTrackOps, SubUpload, uint16(slot), chunk)
}

// ListCommand builds the query for all slots.
func ListCommand(v Variant) ([]byte, error) {
	return Encode(v, TypeTrackOps, SubList, 0, 0)
}

// PlayCommand builds the fire-and-forget command that starts playback of
// slot on the pedal itself. The device sends no acknowledgment.
func PlayCommand(v Variant, slot int) ([]byte, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	return Encode(v, TypeTrackOps, SubPlay, PlayActionStart, uint16(slot))
}

// StopCommand builds the fire-and-forget command that stops playback of slot.
func StopCommand(v Variant, slot int) ([]byte, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	return Encode(v, TypeTrackOps, SubPlay, PlayActionStop, uint16(slot))
}
