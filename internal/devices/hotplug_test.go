package devices

import (
	"strings"
	"testing"
)

func uevent(parts ...string) []byte {
	return []byte(strings.Join(parts, "\x00"))
}

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want *UEvent
	}{
		{
			name: "usb device add",
			data: uevent(
				"add@/devices/pci0000:00/0000:00:14.0/usb1/1-2",
				"ACTION=add",
				"SUBSYSTEM=usb",
				"DEVTYPE=usb_device",
				"DEVNAME=bus/usb/001/004",
				"DEVPATH=/devices/pci0000:00/0000:00:14.0/usb1/1-2",
			),
			want: &UEvent{
				Action:    "add",
				KObj:      "/devices/pci0000:00/0000:00:14.0/usb1/1-2",
				Subsystem: "usb",
				DevType:   "usb_device",
				DevName:   "bus/usb/001/004",
				DevPath:   "/devices/pci0000:00/0000:00:14.0/usb1/1-2",
			},
		},
		{
			name: "remove without devname",
			data: uevent("remove@/devices/x", "SUBSYSTEM=usb", "DEVTYPE=usb_interface"),
			want: &UEvent{Action: "remove", KObj: "/devices/x", Subsystem: "usb", DevType: "usb_interface"},
		},
		{name: "empty", data: nil, want: nil},
		{name: "no header", data: []byte("SUBSYSTEM=usb"), want: nil},
		{name: "missing action", data: []byte("@/devices/x"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseUEvent(tt.data)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("got %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("got nil")
			}
			if *got != *tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
