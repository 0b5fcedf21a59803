package service

import (
	"context"

	"fleetforge/internal/domain"
)

// AssignmentsPayload is published after edges were replaced
type AssignmentsPayload struct {
	NodeIDs []int64 `json:"node_ids"`
}

// DiscoverInterfaces turns a probe report into NIC records for a node
// without persisting them
func (s *NodeService) DiscoverInterfaces(ctx context.Context, nodeID int64, probe domain.ProbeInterfaces) ([]domain.NIC, error) {
	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return s.topo.InterfacesFromProbe(node, probe)
}

// GetInterfaces returns the node's interfaces and its topology version
func (s *NodeService) GetInterfaces(ctx context.Context, nodeID int64) ([]domain.NIC, int64, error) {
	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return nil, 0, err
	}
	nics := node.Interfaces
	if nics == nil {
		nics = []domain.NIC{}
	}
	return nics, node.TopologyVersion, nil
}

// ValidateAssignment reports whether every proposal stays inside its node's
// allowed networks
func (s *NodeService) ValidateAssignment(ctx context.Context, proposals []domain.NodeProposal) (bool, error) {
	res, err := s.topo.Validate(ctx, proposals)
	if err != nil {
		return false, err
	}
	if !res.Allowed {
		s.logger.WithField("node_id", res.Violation.NodeID).Info(res.Violation.Error())
	}
	return res.Allowed, nil
}

// ApplyAssignment replaces the edges of the interfaces the proposal names.
// A non-nil version makes the apply conditional on the node's topology
// version.
func (s *NodeService) ApplyAssignment(ctx context.Context, proposal domain.NodeProposal, version *int64) error {
	var err error
	if version != nil {
		err = s.topo.ApplyOneAtVersion(ctx, proposal, *version)
	} else {
		err = s.topo.ApplyOne(ctx, proposal)
	}
	if err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventAssignmentsUpdated,
		Payload: AssignmentsPayload{NodeIDs: []int64{proposal.NodeID}},
	})
	return nil
}

// ApplyAssignmentCollection applies proposals for several nodes atomically
func (s *NodeService) ApplyAssignmentCollection(ctx context.Context, proposals []domain.NodeProposal) error {
	if err := s.topo.ApplyCollection(ctx, proposals); err != nil {
		return err
	}
	if len(proposals) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(proposals))
	for _, p := range proposals {
		ids = append(ids, p.NodeID)
	}
	s.eventBus.Publish(Event{
		Type:    EventAssignmentsUpdated,
		Payload: AssignmentsPayload{NodeIDs: ids},
	})
	return nil
}

// ResolveConflicts is not supported and always fails with a not-implemented
// error
func (s *NodeService) ResolveConflicts(ctx context.Context, proposals []domain.NodeProposal) error {
	return s.topo.ResolveConflicts(ctx, proposals)
}
