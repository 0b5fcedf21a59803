package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"fleetforge/internal/domain"
	"fleetforge/internal/logging"
	"fleetforge/internal/repository"
)

// ClusterService manages clusters, their attributes and network groups
type ClusterService struct {
	repo     repository.Repository
	eventBus *EventBus
	logger   *logrus.Entry
}

// NewClusterService creates a new cluster service
func NewClusterService(repo repository.Repository, eventBus *EventBus) *ClusterService {
	return &ClusterService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logging.WithComponent("clusters"),
	}
}

// ClusterUpdate is a partial cluster update
type ClusterUpdate struct {
	Name       *string    `json:"name,omitempty"`
	ReleaseID  OptionalID `json:"release_id"`
	Mode       *string    `json:"mode,omitempty"`
	NetManager *string    `json:"net_manager,omitempty"`
}

// ListClusters returns all clusters
func (s *ClusterService) ListClusters(ctx context.Context) ([]*domain.Cluster, error) {
	return s.repo.ListClusters(ctx)
}

// GetCluster retrieves a single cluster
func (s *ClusterService) GetCluster(ctx context.Context, id int64) (*domain.Cluster, error) {
	return getCluster(ctx, s.repo, id)
}

func getCluster(ctx context.Context, q repository.Queries, id int64) (*domain.Cluster, error) {
	cluster, err := q.GetCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		return nil, notFound("cluster %d not found", id)
	}
	return cluster, nil
}

// CreateCluster creates a cluster with empty attributes
func (s *ClusterService) CreateCluster(ctx context.Context, cluster *domain.Cluster) error {
	cluster.Name = strings.TrimSpace(cluster.Name)
	if cluster.NetManager == "" {
		cluster.NetManager = domain.NetManagerFlat
	}

	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		if err := validateCluster(ctx, q, cluster, 0); err != nil {
			return err
		}
		if err := q.CreateCluster(ctx, cluster); err != nil {
			return err
		}
		return q.SaveClusterAttributes(ctx, &domain.ClusterAttributes{
			ClusterID: cluster.ID,
			Editable:  map[string]any{},
			Generated: map[string]any{},
		})
	})
	if err != nil {
		return err
	}

	s.logger.WithField("cluster_id", cluster.ID).Infof("Created cluster %q", cluster.Name)
	s.eventBus.Publish(Event{Type: EventClusterCreated, Payload: cluster})
	return nil
}

// UpdateCluster applies a partial update
func (s *ClusterService) UpdateCluster(ctx context.Context, id int64, upd ClusterUpdate) (*domain.Cluster, error) {
	var cluster *domain.Cluster
	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		var err error
		if cluster, err = getCluster(ctx, q, id); err != nil {
			return err
		}
		if upd.Name != nil {
			cluster.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.ReleaseID.Set {
			cluster.ReleaseID = upd.ReleaseID.ID
		}
		if upd.Mode != nil {
			cluster.Mode = *upd.Mode
		}
		if upd.NetManager != nil {
			cluster.NetManager = *upd.NetManager
		}
		if err := validateCluster(ctx, q, cluster, id); err != nil {
			return err
		}
		return q.UpdateCluster(ctx, cluster)
	})
	if err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{Type: EventClusterUpdated, Payload: cluster})
	return cluster, nil
}

// validateCluster checks name uniqueness, the release reference and the net
// manager. self is the id of the cluster being updated, or 0 on create.
func validateCluster(ctx context.Context, q repository.Queries, cluster *domain.Cluster, self int64) error {
	if cluster.Name == "" {
		return invalid("Environment name is required")
	}
	existing, err := q.GetClusterByName(ctx, cluster.Name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return conflict("Environment with this name already exists")
	}

	if cluster.ReleaseID != nil {
		release, err := q.GetRelease(ctx, *cluster.ReleaseID)
		if err != nil {
			return err
		}
		if release == nil {
			return invalid("Invalid release id")
		}
	}

	switch cluster.NetManager {
	case domain.NetManagerFlat, domain.NetManagerVlan:
	default:
		return invalid("Invalid net manager %q", cluster.NetManager)
	}
	return nil
}

// DeleteCluster removes a cluster. Its nodes are detached and its network
// groups, with every edge bound to them, are removed.
func (s *ClusterService) DeleteCluster(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		if _, err := getCluster(ctx, q, id); err != nil {
			return err
		}
		if err := lockClusterNodes(ctx, q, id); err != nil {
			return err
		}
		return q.DeleteCluster(ctx, id)
	})
	if err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventClusterDeleted,
		Payload: map[string]int64{"cluster_id": id},
	})
	return nil
}

// lockClusterNodes moves the topology version of every node in the cluster
// so that conditional applies prepared against the old network set fail
func lockClusterNodes(ctx context.Context, q repository.Queries, clusterID int64) error {
	nodes, err := q.ListNodes(ctx, &clusterID)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return q.LockNodes(ctx, ids)
}

// GetAttributes returns the cluster attributes
func (s *ClusterService) GetAttributes(ctx context.Context, clusterID int64) (*domain.ClusterAttributes, error) {
	if _, err := s.GetCluster(ctx, clusterID); err != nil {
		return nil, err
	}
	attrs, err := s.repo.GetClusterAttributes(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		attrs = &domain.ClusterAttributes{ClusterID: clusterID}
	}
	if attrs.Editable == nil {
		attrs.Editable = map[string]any{}
	}
	if attrs.Generated == nil {
		attrs.Generated = map[string]any{}
	}
	return attrs, nil
}

// UpdateAttributes replaces the editable attributes. Generated attributes
// are owned by the backend and may not be written.
func (s *ClusterService) UpdateAttributes(ctx context.Context, clusterID int64, body map[string]json.RawMessage) (*domain.ClusterAttributes, error) {
	if _, ok := body["generated"]; ok {
		return nil, invalid("It is not allowed to update generated attributes")
	}

	var editable map[string]any
	if raw, ok := body["editable"]; ok {
		if err := json.Unmarshal(raw, &editable); err != nil || editable == nil {
			return nil, invalid("Editable attributes should be a dictionary")
		}
	}

	attrs, err := s.GetAttributes(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	if editable != nil {
		attrs.Editable = editable
	}
	if err := s.repo.SaveClusterAttributes(ctx, attrs); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{
		Type:    EventClusterUpdated,
		Payload: map[string]int64{"cluster_id": clusterID},
	})
	return attrs, nil
}

// ListNetworks returns the network groups of a cluster
func (s *ClusterService) ListNetworks(ctx context.Context, clusterID int64) ([]*domain.NetworkGroup, error) {
	if _, err := s.GetCluster(ctx, clusterID); err != nil {
		return nil, err
	}
	return s.repo.ListNetworkGroups(ctx, clusterID)
}

// CreateNetwork adds a network group to a cluster. It becomes part of the
// allowed-network set of every node in the cluster.
func (s *ClusterService) CreateNetwork(ctx context.Context, clusterID int64, group *domain.NetworkGroup) error {
	group.ClusterID = clusterID
	group.Name = strings.TrimSpace(group.Name)
	if group.Name == "" {
		return invalid("Network name is required")
	}

	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		if _, err := getCluster(ctx, q, clusterID); err != nil {
			return err
		}
		return createNetwork(ctx, q, group)
	})
	if err != nil {
		return err
	}

	s.eventBus.Publish(Event{Type: EventClusterUpdated, Payload: group})
	return nil
}

func createNetwork(ctx context.Context, q repository.Queries, group *domain.NetworkGroup) error {
	groups, err := q.ListNetworkGroups(ctx, group.ClusterID)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.Name == group.Name {
			return conflict("Network %q already exists in cluster %d", group.Name, group.ClusterID)
		}
	}
	return q.CreateNetworkGroup(ctx, group)
}

// DeleteNetwork removes a network group and every edge bound to it
func (s *ClusterService) DeleteNetwork(ctx context.Context, id int64) error {
	var clusterID int64
	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		group, err := q.GetNetworkGroup(ctx, id)
		if err != nil {
			return err
		}
		if group == nil {
			return notFound("network %d not found", id)
		}
		clusterID = group.ClusterID
		if err := lockClusterNodes(ctx, q, clusterID); err != nil {
			return err
		}
		return q.DeleteNetworkGroup(ctx, id)
	})
	if err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventClusterUpdated,
		Payload: map[string]int64{"cluster_id": clusterID, "network_id": id},
	})
	return nil
}
