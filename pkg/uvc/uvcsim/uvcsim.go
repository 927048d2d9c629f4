// Package uvcsim provides a deterministic in-memory implementation of
// the uvc transport contract.
//
// A Camera is scripted: callers inject frames and status events and
// decide which control writes the device rejects, which is what the
// driver tests build on. With a non-zero FrameInterval a camera
// free-runs instead, generating synthetic frames until its handle is
// closed; `uvcnode check` and `--transport sim` use that mode.
package uvcsim

import (
	"fmt"
	"sync"

	"github.com/openuvc/uvcnode/pkg/uvc"
)

// Transport implements uvc.Transport over a fixed set of simulated
// cameras.
type Transport struct {
	mu      sync.Mutex
	cams    []*Camera
	initErr error
}

// New creates a transport exposing the given cameras.
func New(cams ...*Camera) *Transport {
	return &Transport{cams: cams}
}

// Add registers another camera. Contexts created before or after see
// it on their next lookup.
func (t *Transport) Add(c *Camera) {
	t.mu.Lock()
	t.cams = append(t.cams, c)
	t.mu.Unlock()
}

// SetInitError makes subsequent Init calls fail with err. Pass nil to
// clear.
func (t *Transport) SetInitError(err error) {
	t.mu.Lock()
	t.initErr = err
	t.mu.Unlock()
}

// Init implements uvc.Transport.
func (t *Transport) Init() (uvc.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initErr != nil {
		return nil, t.initErr
	}
	return &simContext{t: t}, nil
}

type simContext struct {
	t      *Transport
	mu     sync.Mutex
	closed bool
}

func (c *simContext) snapshot() ([]*Camera, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, uvc.ErrClosed
	}
	c.t.mu.Lock()
	cams := make([]*Camera, len(c.t.cams))
	copy(cams, c.t.cams)
	c.t.mu.Unlock()
	return cams, nil
}

// FindDevice implements uvc.Context. Index counts 0-based through the
// cameras matching the other filter fields.
func (c *simContext) FindDevice(f uvc.DeviceFilter) (uvc.Device, error) {
	cams, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	idx := 0
	for _, cam := range cams {
		if !matches(cam.Desc, f) {
			continue
		}
		if idx == f.Index {
			return cam, nil
		}
		idx++
	}
	return nil, fmt.Errorf("vendor %#04x product %#04x serial %q index %d: %w",
		f.VendorID, f.ProductID, f.Serial, f.Index, uvc.ErrNoDevice)
}

func (c *simContext) Devices() ([]uvc.DeviceInfo, error) {
	cams, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	infos := make([]uvc.DeviceInfo, 0, len(cams))
	for _, cam := range cams {
		infos = append(infos, cam.Desc)
	}
	return infos, nil
}

func (c *simContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return uvc.ErrClosed
	}
	c.closed = true
	return nil
}

func matches(d uvc.DeviceInfo, f uvc.DeviceFilter) bool {
	if f.VendorID != 0 && d.VendorID != f.VendorID {
		return false
	}
	if f.ProductID != 0 && d.ProductID != f.ProductID {
		return false
	}
	if f.Serial != "" && d.Serial != f.Serial {
		return false
	}
	return true
}
