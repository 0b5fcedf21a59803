package repository

import (
	"context"

	"fleetforge/internal/domain"
)

// Queries defines the data access operations shared by the repository and
// its transactions
type Queries interface {
	// Nodes. Lookups return nil, nil when nothing matches.
	ListNodes(ctx context.Context, clusterID *int64) ([]*domain.Node, error)
	GetNode(ctx context.Context, id int64) (*domain.Node, error)
	GetNodeByMAC(ctx context.Context, mac string) (*domain.Node, error)
	CreateNode(ctx context.Context, node *domain.Node) error
	UpdateNode(ctx context.Context, node *domain.Node) error
	DeleteNode(ctx context.Context, id int64) error

	// Interfaces
	ListInterfaces(ctx context.Context, nodeID int64) ([]domain.NIC, error)
	GetInterfaceByMAC(ctx context.Context, mac string) (*domain.NIC, error)
	CreateInterface(ctx context.Context, nic *domain.NIC) error
	UpdateInterface(ctx context.Context, nic *domain.NIC) error

	// Topology. LockNodes bumps each node's topology version.
	LockNodes(ctx context.Context, nodeIDs []int64) error
	DeleteAssignments(ctx context.Context, interfaceIDs []int64) error

	// Clusters
	ListClusters(ctx context.Context) ([]*domain.Cluster, error)
	GetCluster(ctx context.Context, id int64) (*domain.Cluster, error)
	GetClusterByName(ctx context.Context, name string) (*domain.Cluster, error)
	CreateCluster(ctx context.Context, cluster *domain.Cluster) error
	UpdateCluster(ctx context.Context, cluster *domain.Cluster) error
	DeleteCluster(ctx context.Context, id int64) error
	GetClusterAttributes(ctx context.Context, clusterID int64) (*domain.ClusterAttributes, error)
	SaveClusterAttributes(ctx context.Context, attrs *domain.ClusterAttributes) error

	// Network groups
	ListNetworkGroups(ctx context.Context, clusterID int64) ([]*domain.NetworkGroup, error)
	GetNetworkGroup(ctx context.Context, id int64) (*domain.NetworkGroup, error)
	CreateNetworkGroup(ctx context.Context, group *domain.NetworkGroup) error
	DeleteNetworkGroup(ctx context.Context, id int64) error

	// Releases
	ListReleases(ctx context.Context) ([]*domain.Release, error)
	GetRelease(ctx context.Context, id int64) (*domain.Release, error)
	GetReleaseByNameVersion(ctx context.Context, name, version string) (*domain.Release, error)
	CreateRelease(ctx context.Context, release *domain.Release) error
	UpdateRelease(ctx context.Context, release *domain.Release) error
	DeleteRelease(ctx context.Context, id int64) error

	// Notifications
	ListNotifications(ctx context.Context) ([]*domain.Notification, error)
	GetNotification(ctx context.Context, id int64) (*domain.Notification, error)
	CreateNotification(ctx context.Context, n *domain.Notification) error
	UpdateNotificationStatus(ctx context.Context, id int64, status domain.NotificationStatus) error
}

// Repository defines the interface for fleet data access
type Repository interface {
	Queries

	// WithTx runs fn inside one transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(q Queries) error) error

	// Close releases resources
	Close() error
}
