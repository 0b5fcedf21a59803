package domain

import (
	"net"
	"sort"
	"strings"
)

// NIC represents a network interface discovered on a node
type NIC struct {
	ID           int64  `json:"id"`
	NodeID       int64  `json:"node_id"`
	Name         string `json:"name"`
	MAC          string `json:"mac"`
	CurrentSpeed *int   `json:"current_speed,omitempty"` // Mbit/s
	MaxSpeed     *int   `json:"max_speed,omitempty"`     // Mbit/s

	// AssignedNetworks holds the ids of the network groups bound to this NIC
	AssignedNetworks []int64 `json:"assigned_networks"`
}

// HasNetwork reports whether networkID is currently assigned to the NIC
func (n *NIC) HasNetwork(networkID int64) bool {
	for _, id := range n.AssignedNetworks {
		if id == networkID {
			return true
		}
	}
	return false
}

// NormalizeMAC returns the canonical lower-case colon form of a MAC address.
// Values that do not parse as a hardware address are trimmed and lower-cased.
func NormalizeMAC(mac string) string {
	mac = strings.TrimSpace(mac)
	if hw, err := net.ParseMAC(mac); err == nil {
		return hw.String()
	}
	return strings.ToLower(mac)
}

// NetworkGroup represents one logical network of a cluster
type NetworkGroup struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ClusterID int64  `json:"cluster_id"`
	VlanStart *int   `json:"vlan_start,omitempty"`
	CIDR      string `json:"cidr,omitempty"`
	Gateway   string `json:"gateway,omitempty"`
}

// AssignmentEdge binds one interface to one network group
type AssignmentEdge struct {
	InterfaceID int64 `json:"interface_id"`
	NetworkID   int64 `json:"network_id"`
}

// NetworkSet is a set of network group ids
type NetworkSet map[int64]struct{}

// NewNetworkSet builds a set from a list of ids
func NewNetworkSet(ids ...int64) NetworkSet {
	set := make(NetworkSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is in the set
func (s NetworkSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the set members in ascending order
func (s NetworkSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
