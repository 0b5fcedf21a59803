package topology

import (
	"context"
	"fmt"

	"fleetforge/internal/domain"
)

// Result is the outcome of validating a batch of proposals
type Result struct {
	Allowed bool `json:"allowed"`
	// Violation is set when Allowed is false
	Violation *ValidationError `json:"violation,omitempty"`
}

// ValidateBatch reports whether every proposal stays within its node's
// allowed-network set.
//
// A node or interface that cannot be found is a hard error. The first
// disallowed network ends the whole batch with false. Every entry is checked,
// including an earlier entry for an interface named twice that Edges would
// discard. Nothing is written.
func ValidateBatch(ctx context.Context, r Reader, proposals []domain.NodeProposal) (bool, error) {
	res, err := Check(ctx, r, proposals)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// Check is ValidateBatch returning the structured result
func Check(ctx context.Context, r Reader, proposals []domain.NodeProposal) (Result, error) {
	for _, p := range proposals {
		violation, err := checkNode(ctx, r, p)
		if err != nil {
			return Result{}, err
		}
		if violation != nil {
			return Result{Allowed: false, Violation: violation}, nil
		}
	}
	return Result{Allowed: true}, nil
}

func checkNode(ctx context.Context, r Reader, p domain.NodeProposal) (*ValidationError, error) {
	node, err := r.GetNode(ctx, p.NodeID)
	if err != nil {
		return nil, fmt.Errorf("get node %d: %w", p.NodeID, err)
	}
	if node == nil {
		return nil, &ValidationError{Kind: KindUnknownNode, NodeID: p.NodeID}
	}

	nics, err := r.ListInterfaces(ctx, node.ID)
	if err != nil {
		return nil, fmt.Errorf("list interfaces of node %d: %w", node.ID, err)
	}
	owned := make(map[int64]struct{}, len(nics))
	for _, nic := range nics {
		owned[nic.ID] = struct{}{}
	}

	allowedIDs, err := r.AllowedNetworks(ctx, node.ID)
	if err != nil {
		return nil, fmt.Errorf("allowed networks of node %d: %w", node.ID, err)
	}
	allowed := domain.NewNetworkSet(allowedIDs...)

	for _, iface := range p.Interfaces {
		if _, ok := owned[iface.InterfaceID]; !ok {
			return nil, &ValidationError{Kind: KindUnknownInterface, NodeID: node.ID, InterfaceID: iface.InterfaceID}
		}
		for _, networkID := range iface.NetworkIDs() {
			if !allowed.Contains(networkID) {
				return &ValidationError{
					Kind:        KindForbiddenNetwork,
					NodeID:      node.ID,
					InterfaceID: iface.InterfaceID,
					NetworkID:   networkID,
				}, nil
			}
		}
	}
	return nil, nil
}

// ResolveConflicts would remediate disallowed assignments. No remediation
// policy exists, so it always fails.
func ResolveConflicts(ctx context.Context, r Reader, proposals []domain.NodeProposal) error {
	return &ValidationError{Kind: KindNotImplemented, Detail: "will be implemented later"}
}
