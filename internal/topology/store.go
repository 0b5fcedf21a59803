package topology

import (
	"context"

	"fleetforge/internal/domain"
)

//go:generate mockgen -source=store.go -destination=../mock/topology_mock.go -package=mock

// Reader is the read side of the store the validator works against. Calls
// made through a Tx observe that transaction's snapshot.
type Reader interface {
	// GetNode returns nil, nil when the node does not exist
	GetNode(ctx context.Context, id int64) (*domain.Node, error)
	// ListInterfaces returns the node's interfaces with their assignment sets
	ListInterfaces(ctx context.Context, nodeID int64) ([]domain.NIC, error)
	// AllowedNetworks returns the ids of the networks the node may use
	AllowedNetworks(ctx context.Context, nodeID int64) ([]int64, error)
}

// Tx is one store transaction
type Tx interface {
	Reader

	// LockNodes claims the nodes for writing until the transaction ends.
	// Implementations bump each node's topology version.
	LockNodes(ctx context.Context, nodeIDs []int64) error
	// DeleteAssignments removes every edge owned by the given interfaces
	DeleteAssignments(ctx context.Context, interfaceIDs []int64) error
	// InsertAssignments stores new edges
	InsertAssignments(ctx context.Context, edges []domain.AssignmentEdge) error

	Commit() error
	Rollback() error
}

// ReadTx is a read-only snapshot. It must not block behind, or hold up,
// a concurrent write transaction.
type ReadTx interface {
	Reader

	Rollback() error
}

// Store opens topology transactions
type Store interface {
	// BeginTx starts a write transaction that holds the write lock from the start
	BeginTx(ctx context.Context) (Tx, error)
	// BeginReadTx starts a read-only snapshot
	BeginReadTx(ctx context.Context) (ReadTx, error)
}
