// Package devices enumerates UVC cameras through sysfs and watches for
// USB hotplug events. It never opens a device; the driver's transport
// layer owns device access, this package only answers "what cameras are
// attached" for the CLI, the API, and open-failure diagnostics.
package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/openuvc/uvcnode/pkg/uvc"
)

const sysUSBDevices = "/sys/bus/usb/devices"

// usbClassVideo is the USB interface class for video devices; UVC
// cameras expose at least one interface with it.
const usbClassVideo = 0x0e

// Enumerate lists UVC cameras attached to the system by walking the
// sysfs USB device tree. Systems without sysfs return an empty list and
// an error.
func Enumerate() ([]uvc.DeviceInfo, error) {
	return enumerate(sysUSBDevices)
}

func enumerate(root string) ([]uvc.DeviceInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	var out []uvc.DeviceInfo
	for _, e := range entries {
		name := e.Name()
		// Interface nodes ("1-2:1.0") and root hubs ("usb1") are not
		// devices; skip anything that is not a bus-port address.
		if strings.Contains(name, ":") || strings.HasPrefix(name, "usb") {
			continue
		}
		dir := filepath.Join(root, name)
		if !hasVideoInterface(root, name) {
			continue
		}

		vendor, err := readHex16(filepath.Join(dir, "idVendor"))
		if err != nil {
			continue
		}
		product, err := readHex16(filepath.Join(dir, "idProduct"))
		if err != nil {
			continue
		}
		info := uvc.DeviceInfo{
			VendorID:  vendor,
			ProductID: product,
			Serial:    readString(filepath.Join(dir, "serial")),
			Product:   readString(filepath.Join(dir, "product")),
			Path:      dir,
		}
		if bus, err := readUint8(filepath.Join(dir, "busnum")); err == nil {
			info.Bus = bus
		}
		if addr, err := readUint8(filepath.Join(dir, "devnum")); err == nil {
			info.Address = addr
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Bus != out[j].Bus {
			return out[i].Bus < out[j].Bus
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}

// hasVideoInterface reports whether any interface of the device carries
// the USB video class. Interface directories are named
// "<device>:<config>.<iface>".
func hasVideoInterface(root, device string) bool {
	matches, err := filepath.Glob(filepath.Join(root, device+":*", "bInterfaceClass"))
	if err != nil {
		return false
	}
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		class, err := strconv.ParseUint(strings.TrimSpace(string(data)), 16, 8)
		if err == nil && class == usbClassVideo {
			return true
		}
	}
	return false
}

func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readHex16(path string) (uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

func readUint8(path string) (uint8, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(n), nil
}
