package usb

import "errors"

// ErrDeviceNotFound indicates that no pedal matching the vendor and product
// IDs is attached.
var ErrDeviceNotFound = errors.New("device not found")

// ErrPermissionDenied indicates the OS refused access to the device,
// typically missing udev rules on Linux.
var ErrPermissionDenied = errors.New("permission denied opening device")

// ErrDisconnected indicates the device vanished mid-operation. Transfers
// terminate on it; there is no automatic retry.
var ErrDisconnected = errors.New("device disconnected")

// ErrClosed indicates an operation on a closed session.
var ErrClosed = errors.New("session is closed")
