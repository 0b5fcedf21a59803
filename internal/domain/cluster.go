package domain

import "time"

// Cluster represents a deployment environment grouping nodes under one release
type Cluster struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	ReleaseID  *int64    `json:"release_id,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	NetManager string    `json:"net_manager,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Net managers supported by deployments
const (
	NetManagerFlat = "FlatDHCPManager"
	NetManagerVlan = "VlanManager"
)

// ClusterAttributes holds the operator-editable and the generated
// configuration of a cluster
type ClusterAttributes struct {
	ClusterID int64          `json:"cluster_id"`
	Editable  map[string]any `json:"editable"`
	Generated map[string]any `json:"generated"`
}
