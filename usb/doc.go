// Package usb opens and drives the looper pedal over USB bulk transfers.
//
// A Session claims the pedal's two interfaces and exposes its four bulk
// endpoints as a transfer.Link: commands go out on the control interface,
// acknowledgments come back on its companion in-endpoint, and audio chunks
// move over the data interface. All endpoint I/O is funneled through a
// single goroutine so commands and their responses can never interleave.
//
//	session, err := usb.Open(usb.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//
//	engine := transfer.NewEngine(session, session.Variant(), transfer.DefaultConfig())
package usb
