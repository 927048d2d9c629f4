package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openuvc/uvcnode/internal/devices"
	"github.com/openuvc/uvcnode/internal/logging"
)

// CreateDevicesCmd creates the devices command, which lists UVC cameras
// attached to the system via sysfs without opening any of them.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached UVC cameras",
		Long: `Enumerates USB Video Class cameras from the sysfs device tree and prints ` +
			`their identity (vendor, product, serial, bus address). Useful for filling ` +
			`the vendor/product/serial selectors in the camera snapshot file.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			devs, err := devices.Enumerate()
			if err != nil {
				return fmt.Errorf("enumerate cameras: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(devs)
			}

			if len(devs) == 0 {
				fmt.Println("no UVC cameras found")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VENDOR\tPRODUCT\tSERIAL\tBUS\tADDR\tNAME")
			for _, d := range devs {
				fmt.Fprintf(w, "%#06x\t%#06x\t%s\t%d\t%d\t%s\n",
					d.VendorID, d.ProductID, d.Serial, d.Bus, d.Address, d.Product)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")
	return cmd
}
