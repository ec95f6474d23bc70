// Package transfer implements the chunked upload and download engine for the
// GL100 looper pedal.
//
// The engine drives the device through 1024-byte chunk transfers, keeps the
// emitted audio stream aligned to the 6-byte stereo frame size, validates
// chunk ordering, and enforces the protocol's two timeout classes. All device
// I/O goes through the Link interface, implemented by the usb package.
//
// Example:
//
//	engine := transfer.NewEngine(link, protocol.VariantStandard, transfer.DefaultConfig())
//	err := engine.Download(ctx, 4, func(frames []byte) error {
//	    _, werr := out.Write(frames)
//	    return werr
//	}, nil)
package transfer
