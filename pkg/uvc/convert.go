package uvc

import (
	"bytes"
	"fmt"
	"image/jpeg"
)

// Encoding labels carried by published images.
const (
	EncodingBGR8   = "bgr8"
	EncodingRGB8   = "rgb8"
	EncodingYUV422 = "yuv422"
)

// Convert renders f into scratch and reports the resulting encoding
// label. scratch is the reusable conversion target sized for the
// negotiated stream (width*height*3 bytes); passthrough encodings may
// fill less of it. The returned slice aliases scratch.
//
// Policy, checked in order: BGR, RGB and UYVY pass through unchanged;
// YUYV uses the dedicated YUYV path because the generic fallback
// mishandles it; MJPEG is JPEG-decoded to RGB; anything else goes
// through the generic any-to-BGR fallback.
func Convert(f *Frame, scratch []byte) ([]byte, string, error) {
	var (
		out      []byte
		encoding string
		err      error
	)
	switch f.Format {
	case FormatBGR:
		out, err = copyFrame(f, scratch)
		encoding = EncodingBGR8
	case FormatRGB:
		out, err = copyFrame(f, scratch)
		encoding = EncodingRGB8
	case FormatUYVY:
		out, err = copyFrame(f, scratch)
		encoding = EncodingYUV422
	case FormatYUYV:
		out, err = yuyvToBGR(f, scratch)
		encoding = EncodingBGR8
	case FormatMJPEG:
		out, err = mjpegToRGB(f, scratch)
		encoding = EncodingRGB8
	default:
		out, err = anyToBGR(f, scratch)
		encoding = EncodingBGR8
	}
	if err != nil {
		return nil, "", err
	}
	return out, encoding, nil
}

func copyFrame(f *Frame, dst []byte) ([]byte, error) {
	if len(f.Data) > len(dst) {
		return nil, fmt.Errorf("%s payload is %d bytes, conversion buffer holds %d", f.Format, len(f.Data), len(dst))
	}
	return dst[:copy(dst, f.Data)], nil
}

// anyToBGR converts whatever arrived into packed BGR when a direct
// path exists. Mirrors the usual transport-library fallback: packed
// YUV and RGB variants convert, compressed payloads are rejected.
// Frames from streams negotiated without an explicit format are
// treated as YUY2, which is what such devices overwhelmingly deliver.
func anyToBGR(f *Frame, dst []byte) ([]byte, error) {
	switch f.Format {
	case FormatBGR:
		return copyFrame(f, dst)
	case FormatRGB:
		return rgbToBGR(f, dst)
	case FormatYUYV, FormatUncompressed, FormatAny:
		return yuyvToBGR(f, dst)
	case FormatUYVY:
		return uyvyToBGR(f, dst)
	case FormatGray8:
		return gray8ToBGR(f, dst)
	default:
		return nil, fmt.Errorf("no conversion from %s to bgr", f.Format)
	}
}

// yuyvToBGR expands 4:2:2 YUYV macropixels (Y0 U Y1 V) into 24-bit BGR
// using the BT.601 integer approximation.
func yuyvToBGR(f *Frame, dst []byte) ([]byte, error) {
	n := f.Width * f.Height
	if want := n * 2; len(f.Data) < want {
		return nil, fmt.Errorf("yuyv payload is %d bytes, need %d for %dx%d", len(f.Data), want, f.Width, f.Height)
	}
	if want := n * 3; len(dst) < want {
		return nil, fmt.Errorf("conversion buffer is %d bytes, need %d", len(dst), n*3)
	}
	src := f.Data
	for i, j := 0, 0; i+3 < n*2; i, j = i+4, j+6 {
		y0, u, y1, v := src[i], src[i+1], src[i+2], src[i+3]
		putBGR(dst[j:j+3:j+3], y0, u, v)
		putBGR(dst[j+3:j+6:j+6], y1, u, v)
	}
	return dst[:n*3], nil
}

// uyvyToBGR is the UYVY variant (U Y0 V Y1 per macropixel).
func uyvyToBGR(f *Frame, dst []byte) ([]byte, error) {
	n := f.Width * f.Height
	if want := n * 2; len(f.Data) < want {
		return nil, fmt.Errorf("uyvy payload is %d bytes, need %d for %dx%d", len(f.Data), want, f.Width, f.Height)
	}
	if want := n * 3; len(dst) < want {
		return nil, fmt.Errorf("conversion buffer is %d bytes, need %d", len(dst), n*3)
	}
	src := f.Data
	for i, j := 0, 0; i+3 < n*2; i, j = i+4, j+6 {
		u, y0, v, y1 := src[i], src[i+1], src[i+2], src[i+3]
		putBGR(dst[j:j+3:j+3], y0, u, v)
		putBGR(dst[j+3:j+6:j+6], y1, u, v)
	}
	return dst[:n*3], nil
}

func gray8ToBGR(f *Frame, dst []byte) ([]byte, error) {
	n := f.Width * f.Height
	if len(f.Data) < n {
		return nil, fmt.Errorf("gray8 payload is %d bytes, need %d for %dx%d", len(f.Data), n, f.Width, f.Height)
	}
	if len(dst) < n*3 {
		return nil, fmt.Errorf("conversion buffer is %d bytes, need %d", len(dst), n*3)
	}
	for i := 0; i < n; i++ {
		v := f.Data[i]
		dst[i*3], dst[i*3+1], dst[i*3+2] = v, v, v
	}
	return dst[:n*3], nil
}

func rgbToBGR(f *Frame, dst []byte) ([]byte, error) {
	n := f.Width * f.Height * 3
	if len(f.Data) < n {
		return nil, fmt.Errorf("rgb payload is %d bytes, need %d for %dx%d", len(f.Data), n, f.Width, f.Height)
	}
	if len(dst) < n {
		return nil, fmt.Errorf("conversion buffer is %d bytes, need %d", len(dst), n)
	}
	for i := 0; i < n; i += 3 {
		dst[i], dst[i+1], dst[i+2] = f.Data[i+2], f.Data[i+1], f.Data[i]
	}
	return dst[:n], nil
}

// mjpegToRGB decodes a JPEG payload into packed RGB. Output dimensions
// come from the decoded image, which may disagree with the negotiated
// stream; the caller's buffer bound is what matters.
func mjpegToRGB(f *Frame, dst []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, fmt.Errorf("mjpeg decode: %w", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if want := w * h * 3; len(dst) < want {
		return nil, fmt.Errorf("conversion buffer is %d bytes, need %d for decoded %dx%d", len(dst), want, w, h)
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			dst[i] = byte(r >> 8)
			dst[i+1] = byte(g >> 8)
			dst[i+2] = byte(bl >> 8)
			i += 3
		}
	}
	return dst[:i], nil
}

// putBGR writes one BT.601 converted pixel.
func putBGR(p []byte, y, u, v byte) {
	c := int32(y) - 16
	d := int32(u) - 128
	e := int32(v) - 128
	p[0] = clamp8((298*c + 516*d + 128) >> 8)
	p[1] = clamp8((298*c - 100*d - 208*e + 128) >> 8)
	p[2] = clamp8((298*c + 409*e + 128) >> 8)
}

func clamp8(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
