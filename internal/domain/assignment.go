package domain

// NetworkRef names a network group inside an assignment proposal
type NetworkRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// InterfaceProposal is the requested assignment set for one interface
type InterfaceProposal struct {
	InterfaceID      int64        `json:"id"`
	AssignedNetworks []NetworkRef `json:"assigned_networks"`
}

// NetworkIDs returns the requested network ids in proposal order
func (p InterfaceProposal) NetworkIDs() []int64 {
	ids := make([]int64, 0, len(p.AssignedNetworks))
	for _, ref := range p.AssignedNetworks {
		ids = append(ids, ref.ID)
	}
	return ids
}

// NodeProposal is the requested assignment for some or all interfaces of one node
type NodeProposal struct {
	NodeID     int64               `json:"id"`
	Interfaces []InterfaceProposal `json:"interfaces"`
}

// Effective returns the interface entries that take effect. When an
// interface is named twice the later entry wins, at the position of the later entry.
func (p NodeProposal) Effective() []InterfaceProposal {
	last := make(map[int64]int, len(p.Interfaces))
	for i, iface := range p.Interfaces {
		last[iface.InterfaceID] = i
	}

	out := make([]InterfaceProposal, 0, len(last))
	for i, iface := range p.Interfaces {
		if last[iface.InterfaceID] == i {
			out = append(out, iface)
		}
	}
	return out
}

// Edges expands the effective entries into the assignment edges they
// describe. Repeated network ids on one interface collapse into a single edge.
// Validation still rejects a forbidden network in a discarded entry.
func (p NodeProposal) Edges() []AssignmentEdge {
	var edges []AssignmentEdge
	for _, iface := range p.Effective() {
		seen := make(map[int64]struct{}, len(iface.AssignedNetworks))
		for _, id := range iface.NetworkIDs() {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			edges = append(edges, AssignmentEdge{InterfaceID: iface.InterfaceID, NetworkID: id})
		}
	}
	return edges
}

// InterfaceIDs returns the distinct interface ids named by the proposal
func (p NodeProposal) InterfaceIDs() []int64 {
	seen := make(map[int64]struct{}, len(p.Interfaces))
	ids := make([]int64, 0, len(p.Interfaces))
	for _, iface := range p.Interfaces {
		if _, dup := seen[iface.InterfaceID]; dup {
			continue
		}
		seen[iface.InterfaceID] = struct{}{}
		ids = append(ids, iface.InterfaceID)
	}
	return ids
}
