package devices

import (
	"os"
	"path/filepath"
	"testing"
)

// writeSysfsDevice lays out one fake sysfs USB device under root.
func writeSysfsDevice(t *testing.T, root, name string, attrs map[string]string, ifaceClass string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for file, value := range attrs {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(value+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if ifaceClass != "" {
		ifaceDir := filepath.Join(root, name+":1.0")
		if err := os.MkdirAll(ifaceDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(ifaceDir, "bInterfaceClass"), []byte(ifaceClass+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEnumerateFindsVideoDevices(t *testing.T) {
	root := t.TempDir()

	writeSysfsDevice(t, root, "1-2", map[string]string{
		"idVendor":  "046d",
		"idProduct": "0825",
		"serial":    "8A31F2C0",
		"product":   "HD Webcam C270",
		"busnum":    "1",
		"devnum":    "4",
	}, "0e")

	// A hub: no video interface, must be skipped.
	writeSysfsDevice(t, root, "1-1", map[string]string{
		"idVendor":  "1d6b",
		"idProduct": "0002",
		"busnum":    "1",
		"devnum":    "2",
	}, "09")

	// A root hub entry named usbN is skipped outright.
	writeSysfsDevice(t, root, "usb1", map[string]string{
		"idVendor":  "1d6b",
		"idProduct": "0002",
	}, "09")

	devs, err := enumerate(root)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(devs) != 1 {
		t.Fatalf("found %d devices, want 1: %+v", len(devs), devs)
	}
	d := devs[0]
	if d.VendorID != 0x046d || d.ProductID != 0x0825 {
		t.Errorf("device id = %04x:%04x, want 046d:0825", d.VendorID, d.ProductID)
	}
	if d.Serial != "8A31F2C0" {
		t.Errorf("serial = %q", d.Serial)
	}
	if d.Product != "HD Webcam C270" {
		t.Errorf("product = %q", d.Product)
	}
	if d.Bus != 1 || d.Address != 4 {
		t.Errorf("bus/address = %d/%d, want 1/4", d.Bus, d.Address)
	}
}

func TestEnumerateSortsByBusAddress(t *testing.T) {
	root := t.TempDir()
	writeSysfsDevice(t, root, "2-1", map[string]string{
		"idVendor": "046d", "idProduct": "0893", "busnum": "2", "devnum": "7",
	}, "0e")
	writeSysfsDevice(t, root, "1-3", map[string]string{
		"idVendor": "046d", "idProduct": "0825", "busnum": "1", "devnum": "5",
	}, "0e")

	devs, err := enumerate(root)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(devs) != 2 {
		t.Fatalf("found %d devices, want 2", len(devs))
	}
	if devs[0].Bus != 1 || devs[1].Bus != 2 {
		t.Errorf("devices not sorted by bus: %+v", devs)
	}
}

func TestEnumerateMissingRoot(t *testing.T) {
	if _, err := enumerate(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing sysfs root")
	}
}
