package usb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"github.com/looperkit/gl100/protocol"
	"github.com/looperkit/gl100/transfer"
)

// Device identifiers and endpoint layout. Commands and acknowledgments use
// interface 0, bulk audio data uses interface 1.
const (
	DefaultVendorID  = 0x34DB
	DefaultProductID = 0x0008

	controlInterface = 0
	dataInterface    = 1

	cmdOutEndpoint  = 2 // 0x02
	statusInNumber  = 1 // 0x81
	dataInNumber    = 3 // 0x83
	dataOutEndpoint = 3 // 0x03
)

// Options configures how a session is opened.
type Options struct {
	VendorID  gousb.ID
	ProductID gousb.ID
	Variant   protocol.Variant
}

// DefaultOptions returns the production pedal identifiers and the standard
// protocol variant.
func DefaultOptions() Options {
	return Options{
		VendorID:  DefaultVendorID,
		ProductID: DefaultProductID,
		Variant:   protocol.VariantStandard,
	}
}

// Session is an open connection to one pedal. It implements transfer.Link.
// All endpoint I/O runs on a single owner goroutine; public methods hand
// closures to it and wait, so callers may share a Session across goroutines.
type Session struct {
	usbCtx *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config

	ctrlIntf *gousb.Interface
	dataIntf *gousb.Interface

	cmdOut   *gousb.OutEndpoint
	statusIn *gousb.InEndpoint
	dataIn   *gousb.InEndpoint
	dataOut  *gousb.OutEndpoint

	variant protocol.Variant

	ops       chan func()
	done      chan struct{}
	loopDone  chan struct{} // closed when the owner goroutine exits
	closeOnce sync.Once

	// pendingIndex is the chunk index the next data-in read answers,
	// derived from the last download or list command. Only the owner
	// goroutine touches it.
	pendingIndex uint16
}

// Open finds the first attached pedal matching opts and claims its
// interfaces.
func Open(opts Options) (*Session, error) {
	logrus.WithFields(logrus.Fields{
		"function":   "Open",
		"vendor_id":  fmt.Sprintf("0x%04X", uint16(opts.VendorID)),
		"product_id": fmt.Sprintf("0x%04X", uint16(opts.ProductID)),
		"variant":    opts.Variant.String(),
	}).Info("Opening device")

	usbCtx := gousb.NewContext()

	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == opts.VendorID && desc.Product == opts.ProductID
	})
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		usbCtx.Close()
		if errors.Is(err, gousb.ErrorAccess) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if len(devs) == 0 {
		usbCtx.Close()
		return nil, fmt.Errorf("%w (VID=0x%04X PID=0x%04X)",
			ErrDeviceNotFound, uint16(opts.VendorID), uint16(opts.ProductID))
	}

	dev := devs[0]
	for i := 1; i < len(devs); i++ {
		devs[i].Close()
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("failed to detach kernel driver: %w", err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("failed to get config 1: %w", err)
	}

	ctrlIntf, err := cfg.Interface(controlInterface, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", controlInterface, err)
	}

	dataIntf, err := cfg.Interface(dataInterface, 0)
	if err != nil {
		ctrlIntf.Close()
		cfg.Close()
		dev.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", dataInterface, err)
	}

	cleanup := func() {
		dataIntf.Close()
		ctrlIntf.Close()
		cfg.Close()
		dev.Close()
		usbCtx.Close()
	}

	cmdOut, err := ctrlIntf.OutEndpoint(cmdOutEndpoint)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open command endpoint: %w", err)
	}
	statusIn, err := ctrlIntf.InEndpoint(statusInNumber)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open status endpoint: %w", err)
	}
	dataIn, err := dataIntf.InEndpoint(dataInNumber)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open data-in endpoint: %w", err)
	}
	dataOut, err := dataIntf.OutEndpoint(dataOutEndpoint)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open data-out endpoint: %w", err)
	}

	s := &Session{
		usbCtx:   usbCtx,
		dev:      dev,
		cfg:      cfg,
		ctrlIntf: ctrlIntf,
		dataIntf: dataIntf,
		cmdOut:   cmdOut,
		statusIn: statusIn,
		dataIn:   dataIn,
		dataOut:  dataOut,
		variant:  opts.Variant,
		ops:      make(chan func()),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go s.ioLoop()

	logrus.WithFields(logrus.Fields{
		"function": "Open",
	}).Info("Device opened")

	return s, nil
}

// Variant returns the protocol variant the session was opened with.
func (s *Session) Variant() protocol.Variant { return s.variant }

// ioLoop is the endpoint owner. It executes submitted operations one at a
// time until the session closes.
func (s *Session) ioLoop() {
	defer close(s.loopDone)
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.done:
			return
		}
	}
}

// submit runs fn on the owner goroutine and waits for it. The operation
// itself honors ctx through the endpoint's read/write contexts; submit's
// own wait only gives up if the session closes first.
func (s *Session) submit(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	op := func() { result <- fn() }

	select {
	case s.ops <- op:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-s.done:
		return ErrClosed
	}
}

// mapErr translates gousb and context failures into the session's error
// vocabulary. Timeouts wrap transfer.ErrTimeout so the engine can retry
// them; disconnection is terminal.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gousb.ErrorNoDevice):
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	case errors.Is(err, gousb.ErrorTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", transfer.ErrTimeout, err)
	default:
		return err
	}
}

// Command writes one 64-byte packet to the command endpoint. Download and
// list commands also record which chunk index the next data-in read will
// answer.
func (s *Session) Command(ctx context.Context, raw []byte) error {
	pkt, err := protocol.Decode(s.variant, raw)
	if err != nil {
		return err
	}

	return s.submit(ctx, func() error {
		if pkt.Type == protocol.TypeTrackOps {
			switch pkt.Subcommand {
			case protocol.SubDownload:
				s.pendingIndex = pkt.Arg2
			case protocol.SubList:
				s.pendingIndex = 0
			}
		}

		n, err := s.cmdOut.WriteContext(ctx, raw)
		if err != nil {
			return mapErr(err)
		}
		if n != len(raw) {
			return fmt.Errorf("short command write: %d of %d bytes", n, len(raw))
		}
		return nil
	})
}

// ReadStatus reads one acknowledgment packet from the status endpoint.
func (s *Session) ReadStatus(ctx context.Context) ([]byte, error) {
	buf := make([]byte, protocol.PacketSize)
	var n int
	err := s.submit(ctx, func() error {
		var err error
		n, err = s.statusIn.ReadContext(ctx, buf)
		return mapErr(err)
	})
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// ReadChunk reads one bulk chunk from the data-in endpoint. The reported
// index comes from the routing of the preceding command.
func (s *Session) ReadChunk(ctx context.Context) (transfer.ChunkResponse, error) {
	buf := make([]byte, protocol.ChunkSize)
	var resp transfer.ChunkResponse
	err := s.submit(ctx, func() error {
		n, err := s.dataIn.ReadContext(ctx, buf)
		if err != nil {
			return mapErr(err)
		}
		resp = transfer.ChunkResponse{Index: s.pendingIndex, Data: buf[:n]}
		return nil
	})
	if err != nil {
		return transfer.ChunkResponse{}, err
	}
	return resp, nil
}

// WriteChunk writes one bulk chunk to the data-out endpoint.
func (s *Session) WriteChunk(ctx context.Context, data []byte) error {
	return s.submit(ctx, func() error {
		n, err := s.dataOut.WriteContext(ctx, data)
		if err != nil {
			return mapErr(err)
		}
		if n != len(data) {
			return fmt.Errorf("short chunk write: %d of %d bytes", n, len(data))
		}
		return nil
	})
}

// Close releases the interfaces and the USB context. It waits for the owner
// goroutine to finish any in-flight operation before touching the endpoints.
// Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		logrus.WithFields(logrus.Fields{
			"function": "Close",
		}).Info("Closing device")

		close(s.done)
		<-s.loopDone

		if s.dev == nil {
			return
		}
		s.dataIntf.Close()
		s.ctrlIntf.Close()
		s.cfg.Close()
		s.dev.Close()
		s.usbCtx.Close()
	})
	return nil
}
