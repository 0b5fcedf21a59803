package topology

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// ViolationKind tags the reason a topology operation was refused
type ViolationKind string

const (
	KindMalformedInput     ViolationKind = "malformed_input"
	KindUnknownNode        ViolationKind = "unknown_node"
	KindUnknownInterface   ViolationKind = "unknown_interface"
	KindForbiddenNetwork   ViolationKind = "forbidden_network"
	KindDuplicateInterface ViolationKind = "duplicate_interface"
	KindNotImplemented     ViolationKind = "not_implemented"
)

// Sentinels for errors.Is. Each wraps the errdefs class the HTTP layer maps
// to a status code.
var (
	ErrMalformedInput     = fmt.Errorf("malformed input: %w", errdefs.ErrInvalidArgument)
	ErrUnknownNode        = fmt.Errorf("unknown node: %w", errdefs.ErrNotFound)
	ErrUnknownInterface   = fmt.Errorf("unknown interface: %w", errdefs.ErrNotFound)
	ErrForbiddenNetwork   = fmt.Errorf("network not allowed for node: %w", errdefs.ErrInvalidArgument)
	ErrDuplicateInterface = fmt.Errorf("duplicate interface: %w", errdefs.ErrAlreadyExists)
	ErrNotImplemented     = fmt.Errorf("topology conflict resolution: %w", errdefs.ErrNotImplemented)

	// ErrStaleTopology is returned when a conditional apply finds the node's
	// topology version moved
	ErrStaleTopology = fmt.Errorf("topology version changed: %w", errdefs.ErrFailedPrecondition)
)

var kindSentinels = map[ViolationKind]error{
	KindMalformedInput:     ErrMalformedInput,
	KindUnknownNode:        ErrUnknownNode,
	KindUnknownInterface:   ErrUnknownInterface,
	KindForbiddenNetwork:   ErrForbiddenNetwork,
	KindDuplicateInterface: ErrDuplicateInterface,
	KindNotImplemented:     ErrNotImplemented,
}

// ValidationError describes one refused element of a topology request
type ValidationError struct {
	Kind        ViolationKind `json:"kind"`
	NodeID      int64         `json:"node_id,omitempty"`
	InterfaceID int64         `json:"interface_id,omitempty"`
	NetworkID   int64         `json:"network_id,omitempty"`
	MAC         string        `json:"mac,omitempty"`
	Detail      string        `json:"detail,omitempty"`
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindUnknownNode:
		return fmt.Sprintf("node %d not found", e.NodeID)
	case KindUnknownInterface:
		return fmt.Sprintf("interface %d does not belong to node %d", e.InterfaceID, e.NodeID)
	case KindForbiddenNetwork:
		return fmt.Sprintf("network %d is not allowed for interface %d of node %d", e.NetworkID, e.InterfaceID, e.NodeID)
	case KindDuplicateInterface:
		return fmt.Sprintf("interface with mac %s already reported for node %d", e.MAC, e.NodeID)
	}
	if e.Detail != "" {
		return string(e.Kind) + ": " + e.Detail
	}
	return string(e.Kind)
}

// Unwrap exposes the sentinel for the violation kind
func (e *ValidationError) Unwrap() error {
	return kindSentinels[e.Kind]
}

// AsValidationError extracts a ValidationError from an error chain
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
