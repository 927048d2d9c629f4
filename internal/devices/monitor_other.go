//go:build !linux

package devices

import (
	"context"
	"errors"
)

type monitor struct{}

func newMonitor() (*monitor, error) {
	return nil, errors.New("hotplug monitoring requires linux netlink")
}

func (m *monitor) run(ctx context.Context, out chan<- UEvent) error {
	close(out)
	return nil
}
