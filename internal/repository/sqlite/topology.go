package sqlite

import (
	"context"
	"fmt"

	"fleetforge/internal/domain"
)

// AllowedNetworks returns the network groups of the node's cluster. A node
// outside any cluster may use none.
func (q *queries) AllowedNetworks(ctx context.Context, nodeID int64) ([]int64, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT ng.id
		FROM network_groups ng
		JOIN nodes n ON n.cluster_id = ng.cluster_id
		WHERE n.id = ?
		ORDER BY ng.id
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed networks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan network id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allowed networks: %w", err)
	}
	return ids, nil
}

// LockNodes bumps the topology version of every listed node. Run as the
// first statement of a transaction it claims the write lock before anything
// is read.
func (q *queries) LockNodes(ctx context.Context, nodeIDs []int64) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	_, err := q.q.ExecContext(ctx, `
		UPDATE nodes SET topology_version = topology_version + 1
		WHERE id IN (`+placeholders(len(nodeIDs))+`)
	`, int64Args(nodeIDs)...)
	if err != nil {
		return fmt.Errorf("failed to lock nodes: %w", err)
	}
	return nil
}

// DeleteAssignments removes every edge owned by the given interfaces
func (q *queries) DeleteAssignments(ctx context.Context, interfaceIDs []int64) error {
	if len(interfaceIDs) == 0 {
		return nil
	}
	_, err := q.q.ExecContext(ctx, `
		DELETE FROM assignments WHERE interface_id IN (`+placeholders(len(interfaceIDs))+`)
	`, int64Args(interfaceIDs)...)
	if err != nil {
		return fmt.Errorf("failed to delete assignments: %w", err)
	}
	return nil
}

// InsertAssignments stores new edges
func (q *queries) InsertAssignments(ctx context.Context, edges []domain.AssignmentEdge) error {
	if len(edges) == 0 {
		return nil
	}

	stmt, err := q.q.PrepareContext(ctx, `INSERT INTO assignments (interface_id, network_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.InterfaceID, e.NetworkID); err != nil {
			return fmt.Errorf("failed to insert assignment %d->%d: %w", e.InterfaceID, e.NetworkID, err)
		}
	}
	return nil
}
