// Package protocol implements the GL100 looper pedal's USB command protocol.
//
// This package handles command packet encoding and decoding, checksum
// computation, and parsing of the device's list and track-info responses.
//
// Example:
//
//	cmd, err := protocol.DownloadCommand(protocol.VariantStandard, 4, 1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// cmd is a 64-byte packet ready for the command endpoint.
package protocol
