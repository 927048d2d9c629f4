package cmd

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/openuvc/uvcnode/internal/camerainfo"
	"github.com/openuvc/uvcnode/internal/config"
	"github.com/openuvc/uvcnode/internal/driver"
	"github.com/openuvc/uvcnode/internal/events"
	"github.com/openuvc/uvcnode/internal/logging"
	"github.com/openuvc/uvcnode/internal/sink"
	"github.com/openuvc/uvcnode/pkg/uvc"
	"github.com/openuvc/uvcnode/pkg/uvc/uvcsim"
)

// checkSink counts published frames and remembers the last image shape.
type checkSink struct {
	frames atomic.Int64
	bytes  atomic.Int64

	lastWidth    atomic.Int64
	lastHeight   atomic.Int64
	lastEncoding atomic.Value
}

func (c *checkSink) Publish(img *sink.Image) error {
	c.frames.Add(1)
	c.bytes.Add(int64(len(img.Data)))
	c.lastWidth.Store(int64(img.Width))
	c.lastHeight.Store(int64(img.Height))
	c.lastEncoding.Store(img.Encoding)
	return nil
}

func (c *checkSink) Name() string { return "check" }

func (c *checkSink) Close() error { return nil }

// CreateCheckCmd creates the check command: an end-to-end smoke test of
// the capture pipeline against the simulated transport.
func CreateCheckCmd() *cobra.Command {
	var transport string
	var frames int
	var timeout time.Duration
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a capture pipeline smoke test",
		Long: `Opens a simulated camera, streams frames through the full driver path ` +
			`(open, negotiate, convert, publish), and prints pipeline statistics. ` +
			`Exits non-zero when the driver fails to reach the running state or no ` +
			`frames arrive before the timeout.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if transport != "sim" {
				return fmt.Errorf("unknown transport %q, only sim is built in", transport)
			}
			format := "text"
			if logJSON {
				format = "json"
			}
			logging.Initialize(logging.Config{Level: "info", Format: format})

			snap := config.Default()
			cam := uvcsim.NewCamera(uvc.DeviceInfo{
				VendorID:  0x046d,
				ProductID: 0x0825,
				Serial:    "SIM0001",
				Product:   "Simulated UVC Camera",
				Bus:       1,
				Address:   2,
			})
			cam.FrameInterval = time.Second / time.Duration(snap.FrameRate)

			cs := &checkSink{}
			drv := driver.New(driver.Options{
				Transport: uvcsim.New(cam),
				Sink:      cs,
				Info:      camerainfo.NewManager(snap.FrameID),
				Bus:       events.New(),
				Snapshot:  snap,
			})

			start := time.Now()
			running, err := drv.Start()
			if err != nil {
				return fmt.Errorf("driver start: %w", err)
			}
			if !running {
				drv.Stop()
				return fmt.Errorf("driver did not reach running state")
			}

			deadline := time.Now().Add(timeout)
			for cs.frames.Load() < int64(frames) && time.Now().Before(deadline) {
				time.Sleep(20 * time.Millisecond)
			}
			drv.Stop()

			got := cs.frames.Load()
			elapsed := time.Since(start)
			fmt.Fprintf(os.Stdout, "frames:    %d\n", got)
			fmt.Fprintf(os.Stdout, "bytes:     %d\n", cs.bytes.Load())
			fmt.Fprintf(os.Stdout, "elapsed:   %s\n", elapsed.Round(time.Millisecond))
			if got > 0 {
				fmt.Fprintf(os.Stdout, "rate:      %.1f fps\n", float64(got)/elapsed.Seconds())
				fmt.Fprintf(os.Stdout, "image:     %dx%d %s\n",
					cs.lastWidth.Load(), cs.lastHeight.Load(), cs.lastEncoding.Load())
			}
			if got < int64(frames) {
				return fmt.Errorf("captured %d of %d frames before timeout", got, frames)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "sim", "Camera transport backend")
	cmd.Flags().IntVarP(&frames, "frames", "n", 30, "Frames to capture before reporting")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Give up after this long")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Log in JSON format")
	return cmd
}
