package probe

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"fleetforge/internal/domain"
)

// FormatSpeed renders a speed in Mbit/s, e.g. "10 Gbit/s"
func FormatSpeed(mbps *int) string {
	if mbps == nil {
		return "-"
	}
	return humanize.SI(float64(*mbps)*1e6, "bit/s")
}

// WriteTable prints the interfaces as an aligned table
func WriteTable(w io.Writer, ifaces domain.ProbeInterfaces) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMAC\tSPEED")
	for _, iface := range ifaces {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", iface.Name, iface.MAC, FormatSpeed(iface.CurrentSpeed))
	}
	return tw.Flush()
}
