package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumKnownValue(t *testing.T) {
	// Pinned against the reference table-driven implementation.
	assert.Equal(t, uint16(0xCE3C), Checksum([]byte("123456789")))
}

func TestCommandBytesMatchCaptures(t *testing.T) {
	tests := []struct {
		name  string
		build func() ([]byte, error)
		want  []byte // leading bytes; the rest of the packet must be zero
	}{
		{
			name:  "download_slot4_chunk1",
			build: func() ([]byte, error) { return DownloadCommand(VariantStandard, 4, 1) },
			want:  []byte{0x3F, 0xAA, 0x55, 0x07, 0x00, 0x82, 0x04, 0x00, 0x01, 0x00, 0x00, 0x00, 0xF5, 0x5B},
		},
		{
			name:  "delete_slot7",
			build: func() ([]byte, error) { return DeleteCommand(VariantStandard, 7) },
			want:  []byte{0x3F, 0xAA, 0x55, 0x03, 0x00, 0x88, 0x07, 0x00, 0x1A, 0x41},
		},
		{
			name:  "upload_init",
			build: func() ([]byte, error) { return UploadInitCommand(VariantStandard) },
			want:  []byte{0x3F, 0xAA, 0x55, 0x01, 0x00, 0x86, 0x39, 0x81},
		},
		{
			name:  "play_slot2",
			build: func() ([]byte, error) { return PlayCommand(VariantStandard, 2) },
			want:  []byte{0x3F, 0xAA, 0x55, 0x07, 0x00, 0x8A, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0xBE, 0x2B},
		},
		{
			name:  "upload_chunk_slot9_chunk258",
			build: func() ([]byte, error) { return UploadChunkCommand(VariantStandard, 9, 258) },
			want:  []byte{0x3F, 0xAA, 0x55, 0x07, 0x00, 0x84, 0x09, 0x00, 0x02, 0x01, 0x00, 0x00, 0xB6, 0xD1},
		},
		{
			name:  "list",
			build: func() ([]byte, error) { return ListCommand(VariantStandard) },
			want:  []byte{0x3F, 0xAA, 0x55, 0x07, 0x00, 0x88, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x76, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := tt.build()
			require.NoError(t, err)
			require.Len(t, pkt, PacketSize)
			assert.Equal(t, tt.want, pkt[:len(tt.want)])
			for i := len(tt.want); i < PacketSize; i++ {
				assert.Zero(t, pkt[i], "padding byte %d must be zero", i)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		variant    Variant
		typ        byte
		sub        byte
		arg1, arg2 uint16
	}{
		{"standard_download", VariantStandard, TypeTrackOps, SubDownload, 42, 1337},
		{"standard_upload_init", VariantStandard, TypeUploadInit, SubUploadInit, 0, 0},
		{"standard_delete", VariantStandard, TypeDelete, SubDelete, 99, 0},
		{"compact_download", VariantCompact, TypeTrackOps, SubDownload, 7, 200},
		{"compact_play", VariantCompact, TypeTrackOps, SubPlay, 1, 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Encode(tt.variant, tt.typ, tt.sub, tt.arg1, tt.arg2)
			require.NoError(t, err)
			require.Len(t, raw, PacketSize)

			pkt, err := Decode(tt.variant, raw)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, pkt.Type)
			assert.Equal(t, tt.sub, pkt.Subcommand)
			if tt.typ != TypeUploadInit {
				assert.Equal(t, tt.arg1, pkt.Arg1)
			}
			if tt.typ == TypeTrackOps {
				assert.Equal(t, tt.arg2, pkt.Arg2)
			}
		})
	}
}

func TestDecodeBitFlipFailsChecksum(t *testing.T) {
	raw, err := DownloadCommand(VariantStandard, 12, 34)
	require.NoError(t, err)

	// Flip one bit in every byte of the checksummed payload in turn; each
	// corruption must be detected.
	for i := 3; i < 12; i++ {
		corrupted := make([]byte, len(raw))
		copy(corrupted, raw)
		corrupted[i] ^= 0x01

		_, err := Decode(VariantStandard, corrupted)
		assert.ErrorIs(t, err, ErrChecksumMismatch, "flip at byte %d", i)
	}
}

func TestDecodeRejectsWrongHeader(t *testing.T) {
	raw, err := DownloadCommand(VariantStandard, 0, 0)
	require.NoError(t, err)

	raw[0] = 0x00
	_, err = Decode(VariantStandard, raw)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, err := Decode(VariantStandard, make([]byte, 63))
	assert.ErrorIs(t, err, ErrBadLength)
}

func TestDecodeRejectsVariantMismatch(t *testing.T) {
	raw, err := DownloadCommand(VariantStandard, 3, 0)
	require.NoError(t, err)

	// A standard-header packet must not decode under the compact variant.
	_, err = Decode(VariantCompact, raw)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestCompactVariantChunkWidth(t *testing.T) {
	_, err := DownloadCommand(VariantCompact, 0, 256)
	assert.ErrorIs(t, err, ErrChunkOutOfRange)

	raw, err := DownloadCommand(VariantCompact, 0, 255)
	require.NoError(t, err)

	pkt, err := Decode(VariantCompact, raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(255), pkt.Arg2)
}

func TestSlotValidation(t *testing.T) {
	for _, slot := range []int{-1, 100, 1000} {
		_, err := DownloadCommand(VariantStandard, slot, 0)
		assert.ErrorIs(t, err, ErrSlotOutOfRange, "slot %d", slot)
		_, err = DeleteCommand(VariantStandard, slot)
		assert.ErrorIs(t, err, ErrSlotOutOfRange, "slot %d", slot)
		_, err = PlayCommand(VariantStandard, slot)
		assert.ErrorIs(t, err, ErrSlotOutOfRange, "slot %d", slot)
	}
}

func TestEncodeUnknownType(t *testing.T) {
	_, err := Encode(VariantStandard, 0x55, 0x00, 0, 0)
	assert.True(t, errors.Is(err, ErrUnknownCommand))
}
