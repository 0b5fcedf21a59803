// Package probe inventories the physical network interfaces of the local host.
package probe

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"

	"fleetforge/internal/domain"
	"fleetforge/internal/logging"
)

// DefaultSysfsRoot is where the kernel exposes per-interface attributes
const DefaultSysfsRoot = "/sys/class/net"

// LinkLister lists network links
type LinkLister interface {
	LinkList() ([]netlink.Link, error)
}

// NetlinkLister implements LinkLister using vishvananda/netlink.
type NetlinkLister struct{}

var _ LinkLister = NetlinkLister{}

// LinkList returns every link known to the kernel.
func (NetlinkLister) LinkList() ([]netlink.Link, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list netlink interfaces: %w", err)
	}
	return links, nil
}

// Prober turns the host's physical links into a probe report
type Prober struct {
	links     LinkLister
	sysfsRoot string
	logger    *logrus.Entry
}

// New creates a prober. An empty sysfsRoot means DefaultSysfsRoot.
func New(links LinkLister, sysfsRoot string) *Prober {
	if sysfsRoot == "" {
		sysfsRoot = DefaultSysfsRoot
	}
	return &Prober{
		links:     links,
		sysfsRoot: sysfsRoot,
		logger:    logging.WithComponent("probe"),
	}
}

// Probe reports every physical Ethernet link, ordered by name
func (p *Prober) Probe() (domain.ProbeInterfaces, error) {
	links, err := p.links.LinkList()
	if err != nil {
		return nil, err
	}

	out := domain.ProbeInterfaces{}
	for _, link := range links {
		attrs := link.Attrs()
		if attrs == nil {
			continue
		}
		if reason := skipReason(link); reason != "" {
			p.logger.WithField("interface", attrs.Name).Debugf("skipping %s link", reason)
			continue
		}

		out = append(out, domain.ProbeInterface{
			Name:         attrs.Name,
			MAC:          attrs.HardwareAddr.String(),
			CurrentSpeed: p.readSpeed(attrs.Name),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func skipReason(link netlink.Link) string {
	attrs := link.Attrs()
	switch {
	case attrs.Flags&net.FlagLoopback != 0:
		return "loopback"
	case link.Type() != "device":
		return link.Type()
	case len(attrs.HardwareAddr) != 6:
		return "non-ethernet"
	}
	return ""
}

// readSpeed returns the negotiated speed in Mbit/s. Links that are down
// report -1 or fail the read; both yield nil.
func (p *Prober) readSpeed(name string) *int {
	data, err := os.ReadFile(filepath.Join(p.sysfsRoot, name, "speed"))
	if err != nil {
		return nil
	}
	speed, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || speed <= 0 {
		return nil
	}
	return &speed
}
