package usb

import (
	"fmt"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
)

// DeviceInfo describes one attached pedal found during enumeration.
type DeviceInfo struct {
	Bus       int
	Address   int
	VendorID  gousb.ID
	ProductID gousb.ID
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("bus %d addr %d (VID=0x%04X PID=0x%04X)",
		d.Bus, d.Address, uint16(d.VendorID), uint16(d.ProductID))
}

// FindDevices lists attached pedals matching the given identifiers without
// claiming them.
func FindDevices(vendorID, productID gousb.ID) ([]DeviceInfo, error) {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	var found []DeviceInfo
	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == vendorID && desc.Product == productID {
			found = append(found, DeviceInfo{
				Bus:       desc.Bus,
				Address:   desc.Address,
				VendorID:  desc.Vendor,
				ProductID: desc.Product,
			})
		}
		return false
	})
	for _, d := range devs {
		d.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "FindDevices",
		"count":    len(found),
	}).Debug("Device enumeration complete")

	return found, nil
}
