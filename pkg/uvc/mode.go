package uvc

import "fmt"

// Video mode names accepted in configuration files.
var videoModes = map[string]FrameFormat{
	"uncompressed": FormatUncompressed,
	"compressed":   FormatCompressed,
	"yuyv":         FormatYUYV,
	"uyvy":         FormatUYVY,
	"rgb":          FormatRGB,
	"bgr":          FormatBGR,
	"mjpeg":        FormatMJPEG,
	"gray8":        FormatGray8,
}

// ParseVideoMode maps a configuration video mode name to a stream
// format. Unknown names return FormatUncompressed together with an
// error so callers can warn and keep going.
func ParseVideoMode(name string) (FrameFormat, error) {
	if f, ok := videoModes[name]; ok {
		return f, nil
	}
	return FormatUncompressed, fmt.Errorf("unsupported video mode %q", name)
}

func (f FrameFormat) String() string {
	switch f {
	case FormatAny:
		return "any"
	case FormatUncompressed:
		return "uncompressed"
	case FormatCompressed:
		return "compressed"
	case FormatYUYV:
		return "yuyv"
	case FormatUYVY:
		return "uyvy"
	case FormatRGB:
		return "rgb"
	case FormatBGR:
		return "bgr"
	case FormatMJPEG:
		return "mjpeg"
	case FormatGray8:
		return "gray8"
	default:
		return fmt.Sprintf("format(%d)", uint32(f))
	}
}
