package uvc

// Control selectors for the camera terminal (UVC 1.5 table A-12). The
// values share a number space with the processing unit selectors and
// are only meaningful together with a status class.
const (
	SelectorScanningMode         uint8 = 0x01
	SelectorAEMode               uint8 = 0x02
	SelectorAEPriority           uint8 = 0x03
	SelectorExposureTimeAbsolute uint8 = 0x04
	SelectorFocusAbsolute        uint8 = 0x06
	SelectorFocusAuto            uint8 = 0x08
	SelectorIrisAbsolute         uint8 = 0x09
	SelectorPanTiltAbsolute      uint8 = 0x0D
)

// Control selectors for the processing unit (UVC 1.5 table A-13).
const (
	SelectorBrightness              uint8 = 0x02
	SelectorGain                    uint8 = 0x04
	SelectorWhiteBalanceTemperature uint8 = 0x0A
)

// StatusClass identifies the unit a status event originated from.
type StatusClass uint8

// Status classes from the UVC status interrupt endpoint.
const (
	StatusClassControl           StatusClass = 0x10
	StatusClassControlCamera     StatusClass = 0x11
	StatusClassControlProcessing StatusClass = 0x12
)

// StatusAttribute identifies what changed about a control.
type StatusAttribute uint8

// Status attributes.
const (
	StatusAttributeValueChange   StatusAttribute = 0x00
	StatusAttributeInfoChange    StatusAttribute = 0x01
	StatusAttributeFailureChange StatusAttribute = 0x02
	StatusAttributeUnknown       StatusAttribute = 0xff
)

// StatusEvent is a device-originated control notification delivered on
// the transport's event goroutine. Data holds the control payload in
// the device's wire encoding (little endian).
type StatusEvent struct {
	Class     StatusClass
	Event     uint8
	Selector  uint8
	Attribute StatusAttribute
	Data      []byte
}

// StatusCallback receives status events.
type StatusCallback func(StatusEvent)
