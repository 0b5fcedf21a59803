package domain

import "time"

// NodeStatus represents the provisioning status of a node
type NodeStatus string

const (
	NodeStatusDiscover     NodeStatus = "discover"     // Reported by the bootstrap agent
	NodeStatusProvisioning NodeStatus = "provisioning" // Operating system install in progress
	NodeStatusProvisioned  NodeStatus = "provisioned"  // Operating system installed
	NodeStatusDeploying    NodeStatus = "deploying"    // Roles are being deployed
	NodeStatusReady        NodeStatus = "ready"        // Deployment finished
	NodeStatusError        NodeStatus = "error"        // Last task failed
)

// NodeStatuses lists every status a node may be set to
var NodeStatuses = []NodeStatus{
	NodeStatusDiscover,
	NodeStatusProvisioning,
	NodeStatusProvisioned,
	NodeStatusDeploying,
	NodeStatusReady,
	NodeStatusError,
}

// Valid reports whether s is a known node status
func (s NodeStatus) Valid() bool {
	for _, known := range NodeStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Node represents a machine managed by the backend
type Node struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	MAC       string     `json:"mac"`
	Status    NodeStatus `json:"status"`
	Online    bool       `json:"online"`
	ClusterID *int64     `json:"cluster_id,omitempty"`
	Meta      Meta       `json:"meta,omitempty"`

	// TopologyVersion is bumped by every assignment reconciliation
	TopologyVersion int64 `json:"topology_version"`

	Interfaces []NIC `json:"interfaces,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewNode creates a new node in discover status
func NewNode(mac, name string) *Node {
	now := time.Now().UTC()
	return &Node{
		MAC:       NormalizeMAC(mac),
		Name:      name,
		Status:    NodeStatusDiscover,
		Online:    true,
		Meta:      make(Meta),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// InterfaceByMAC returns the node interface carrying mac, if any
func (n *Node) InterfaceByMAC(mac string) (*NIC, bool) {
	mac = NormalizeMAC(mac)
	for i := range n.Interfaces {
		if n.Interfaces[i].MAC == mac {
			return &n.Interfaces[i], true
		}
	}
	return nil, false
}

// InterfaceByID returns the node interface with the given id, if any
func (n *Node) InterfaceByID(id int64) (*NIC, bool) {
	for i := range n.Interfaces {
		if n.Interfaces[i].ID == id {
			return &n.Interfaces[i], true
		}
	}
	return nil, false
}

// Meta holds hardware facts reported by the bootstrap agent. The interface
// list is kept separately on the node as NIC records.
type Meta map[string]any

// Set sets a meta value
func (m Meta) Set(key string, value any) {
	m[key] = value
}

// Get gets a meta value
func (m Meta) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	val, ok := m[key]
	return val, ok
}

// GetString gets a meta value as a string
func (m Meta) GetString(key string) string {
	val, ok := m.Get(key)
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
