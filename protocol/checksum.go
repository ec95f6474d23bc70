package protocol

import "github.com/sigurn/crc16"

// checksumParams describes the pedal's CRC: CCITT polynomial, zero initial
// state, no reflection, complemented result. The check value is the CRC of
// the ASCII string "123456789".
var checksumParams = crc16.Params{
	Poly:   0x1021,
	Init:   0x0000,
	RefIn:  false,
	RefOut: false,
	XorOut: 0xFFFF,
	Check:  0xCE3C,
	Name:   "CRC-16/GL100",
}

var checksumTable = crc16.MakeTable(checksumParams)

// Checksum computes the command checksum over data. The device stores the
// result big-endian immediately after the checksummed span.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, checksumTable)
}
