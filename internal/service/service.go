package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"fleetforge/internal/domain"
	"fleetforge/internal/logging"
	"fleetforge/internal/repository"
	"fleetforge/internal/topology"
)

// NodeService provides business logic for node registration and updates
type NodeService struct {
	repo     repository.Repository
	topo     *topology.Reconciler
	eventBus *EventBus
	logger   *logrus.Entry
}

// NewNodeService creates a new node service
func NewNodeService(repo repository.Repository, topo *topology.Reconciler, eventBus *EventBus) *NodeService {
	return &NodeService{
		repo:     repo,
		topo:     topo,
		eventBus: eventBus,
		logger:   logging.WithComponent("nodes"),
	}
}

// RegisterRequest is the payload a bootstrap agent posts for a new node
type RegisterRequest struct {
	MAC  string          `json:"mac"`
	Name string          `json:"name,omitempty"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

// NodeUpdate is a partial node update. Absent fields are left unchanged.
// ID and MAC only select the node in collection updates.
type NodeUpdate struct {
	ID        *int64             `json:"id,omitempty"`
	MAC       string             `json:"mac,omitempty"`
	Name      *string            `json:"name,omitempty"`
	Status    *domain.NodeStatus `json:"status,omitempty"`
	Online    *bool              `json:"online,omitempty"`
	ClusterID OptionalID         `json:"cluster_id"`
	Meta      json.RawMessage    `json:"meta,omitempty"`
}

// ListNodes returns all nodes, optionally limited to one cluster
func (s *NodeService) ListNodes(ctx context.Context, clusterID *int64) ([]*domain.Node, error) {
	return s.repo.ListNodes(ctx, clusterID)
}

// GetNode retrieves a single node with its interfaces
func (s *NodeService) GetNode(ctx context.Context, id int64) (*domain.Node, error) {
	node, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, notFound("node %d not found", id)
	}
	return node, nil
}

// RegisterNode creates a node reported by a bootstrap agent together with
// its interfaces and a discover notification
func (s *NodeService) RegisterNode(ctx context.Context, req RegisterRequest) (*domain.Node, error) {
	if strings.TrimSpace(req.MAC) == "" {
		return nil, invalid("No mac address specified")
	}
	// A registration without meta creates a node with no interfaces
	reported := len(req.Meta) > 0 && string(req.Meta) != "null"
	var (
		meta  domain.Meta
		probe domain.ProbeInterfaces
		err   error
	)
	if reported {
		meta, probe, err = parseMeta(req.Meta)
		if err != nil {
			return nil, err
		}
	}

	node := domain.NewNode(req.MAC, req.Name)
	if meta != nil {
		node.Meta = meta
	}
	if node.Name == "" {
		node.Name = "Untitled (" + node.MAC + ")"
	}

	var notification *domain.Notification
	err = s.repo.WithTx(ctx, func(q repository.Queries) error {
		if err := checkMACsFree(ctx, q, node.MAC, probe); err != nil {
			return err
		}
		if err := q.CreateNode(ctx, node); err != nil {
			return err
		}

		if reported {
			nics, err := s.topo.InterfacesFromProbe(node, probe)
			if err != nil {
				return err
			}
			for i := range nics {
				if err := q.CreateInterface(ctx, &nics[i]); err != nil {
					return err
				}
			}
			node.Interfaces = nics
		}

		notification = domain.NewNotification(domain.TopicDiscover, "New node is discovered")
		notification.NodeID = &node.ID
		return q.CreateNotification(ctx, notification)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("node_id", node.ID).Infof("Registered node %s with %d interfaces", node.MAC, len(node.Interfaces))
	s.eventBus.Publish(Event{Type: EventNodeCreated, Payload: node})
	s.eventBus.Publish(Event{Type: EventNotificationCreated, Payload: notification})
	return node, nil
}

// checkMACsFree fails when the node MAC or any reported interface MAC is
// already known
func checkMACsFree(ctx context.Context, q repository.Queries, mac string, probe domain.ProbeInterfaces) error {
	macs := []string{mac}
	for _, entry := range probe {
		if entry.Usable() {
			macs = append(macs, domain.NormalizeMAC(entry.MAC))
		}
	}
	for _, m := range macs {
		existing, err := q.GetNodeByMAC(ctx, m)
		if err != nil {
			return err
		}
		nic, err := q.GetInterfaceByMAC(ctx, m)
		if err != nil {
			return err
		}
		if existing != nil || nic != nil {
			return conflict("Node with mac %s already exists - doing nothing", m)
		}
	}
	return nil
}

// UpdateNode applies a partial update to one node
func (s *NodeService) UpdateNode(ctx context.Context, id int64, upd NodeUpdate) (*domain.Node, error) {
	var node *domain.Node
	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		existing, err := q.GetNode(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return notFound("node %d not found", id)
		}
		node, err = s.applyUpdate(ctx, q, existing, upd)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{Type: EventNodeUpdated, Payload: node})
	return node, nil
}

// UpdateNodes applies a batch of partial updates in one transaction. Each
// entry selects its node by id or by MAC.
func (s *NodeService) UpdateNodes(ctx context.Context, updates []NodeUpdate) ([]*domain.Node, error) {
	if updates == nil {
		return nil, invalid("Invalid json list")
	}

	nodes := make([]*domain.Node, 0, len(updates))
	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		for _, upd := range updates {
			existing, err := selectNode(ctx, q, upd)
			if err != nil {
				return err
			}
			node, err := s.applyUpdate(ctx, q, existing, upd)
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, node := range nodes {
		s.eventBus.Publish(Event{Type: EventNodeUpdated, Payload: node})
	}
	return nodes, nil
}

func selectNode(ctx context.Context, q repository.Queries, upd NodeUpdate) (*domain.Node, error) {
	if upd.ID == nil && upd.MAC == "" {
		return nil, invalid("MAC or ID is not specified")
	}

	var byMAC *domain.Node
	if upd.MAC != "" {
		node, err := q.GetNodeByMAC(ctx, upd.MAC)
		if err != nil {
			return nil, err
		}
		if node == nil {
			nic, err := q.GetInterfaceByMAC(ctx, upd.MAC)
			if err != nil {
				return nil, err
			}
			if nic != nil {
				if node, err = q.GetNode(ctx, nic.NodeID); err != nil {
					return nil, err
				}
			}
		}
		if node == nil {
			return nil, invalid("Invalid MAC specified")
		}
		byMAC = node
	}

	if upd.ID == nil {
		return byMAC, nil
	}
	node, err := q.GetNode(ctx, *upd.ID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, invalid("Invalid ID specified")
	}
	return node, nil
}

// applyUpdate writes upd onto node and returns the stored result
func (s *NodeService) applyUpdate(ctx context.Context, q repository.Queries, node *domain.Node, upd NodeUpdate) (*domain.Node, error) {
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, invalid("Invalid status for node")
		}
		node.Status = *upd.Status
	}
	if upd.Name != nil {
		node.Name = *upd.Name
	}
	if upd.Online != nil {
		node.Online = *upd.Online
	}

	if upd.ClusterID.Set && !sameID(node.ClusterID, upd.ClusterID.ID) {
		if upd.ClusterID.ID != nil {
			cluster, err := q.GetCluster(ctx, *upd.ClusterID.ID)
			if err != nil {
				return nil, err
			}
			if cluster == nil {
				return nil, invalid("Invalid cluster id")
			}
		}
		// The allowed-network set changes with the cluster, so existing
		// edges are dropped and the topology version moves.
		if err := clearAssignments(ctx, q, node); err != nil {
			return nil, err
		}
		node.ClusterID = upd.ClusterID.ID
	}

	if len(upd.Meta) > 0 {
		meta, probe, err := parseMeta(upd.Meta)
		if err != nil {
			return nil, err
		}
		if probe != nil {
			if err := probe.Strict(); err != nil {
				return nil, invalid("Interface in meta.interfaces must be dict")
			}
			if err := s.mergeInterfaces(ctx, q, node, probe); err != nil {
				return nil, err
			}
		}
		node.Meta = meta
	}

	if err := q.UpdateNode(ctx, node); err != nil {
		return nil, err
	}
	return q.GetNode(ctx, node.ID)
}

func clearAssignments(ctx context.Context, q repository.Queries, node *domain.Node) error {
	if err := q.LockNodes(ctx, []int64{node.ID}); err != nil {
		return err
	}
	ids := make([]int64, 0, len(node.Interfaces))
	for _, nic := range node.Interfaces {
		ids = append(ids, nic.ID)
	}
	return q.DeleteAssignments(ctx, ids)
}

// mergeInterfaces folds a probe report into the node's interfaces. Known
// MACs are refreshed, new ones are created, and interfaces missing from the
// report are kept.
func (s *NodeService) mergeInterfaces(ctx context.Context, q repository.Queries, node *domain.Node, probe domain.ProbeInterfaces) error {
	nics, err := s.topo.InterfacesFromProbe(node, probe)
	if err != nil {
		return err
	}

	for i := range nics {
		nic := &nics[i]
		if existing, ok := node.InterfaceByMAC(nic.MAC); ok {
			existing.Name = nic.Name
			existing.CurrentSpeed = nic.CurrentSpeed
			existing.MaxSpeed = nic.MaxSpeed
			if err := q.UpdateInterface(ctx, existing); err != nil {
				return err
			}
			continue
		}

		owner, err := q.GetInterfaceByMAC(ctx, nic.MAC)
		if err != nil {
			return err
		}
		if owner != nil {
			return conflict("Interface with mac %s belongs to node %d", nic.MAC, owner.NodeID)
		}
		if err := q.CreateInterface(ctx, nic); err != nil {
			return err
		}
		node.Interfaces = append(node.Interfaces, *nic)
	}
	return nil
}

// DeleteNode decommissions a node. Its interfaces and edges go with it.
func (s *NodeService) DeleteNode(ctx context.Context, id int64) error {
	if _, err := s.GetNode(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteNode(ctx, id); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventNodeDeleted,
		Payload: map[string]int64{"node_id": id},
	})
	return nil
}

// parseMeta splits a meta document into the stored facts and the interface
// report. The report is nil when the document has no interfaces key.
func parseMeta(raw json.RawMessage) (domain.Meta, domain.ProbeInterfaces, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, nil, invalid("Invalid data: 'meta' should be dict")
	}

	var probe domain.ProbeInterfaces
	if ifaces, ok := fields["interfaces"]; ok {
		if err := json.Unmarshal(ifaces, &probe); err != nil {
			return nil, nil, invalid("Meta.interfaces should be list")
		}
		delete(fields, "interfaces")
	}

	meta := make(domain.Meta, len(fields))
	for key, value := range fields {
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, nil, fmt.Errorf("decode meta %s: %w", key, err)
		}
		meta[key] = v
	}
	return meta, probe, nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
