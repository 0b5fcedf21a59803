package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleetforge/internal/domain"
)

// ListNodes returns all nodes with their interfaces, optionally only those of one cluster
func (q *queries) ListNodes(ctx context.Context, clusterID *int64) ([]*domain.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes`
	var args []any
	if clusterID != nil {
		query += ` WHERE cluster_id = ?`
		args = append(args, *clusterID)
	}
	query += ` ORDER BY id`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*domain.Node
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode node %d: %w", row.ID, err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	rows.Close()

	for _, node := range nodes {
		if node.Interfaces, err = q.ListInterfaces(ctx, node.ID); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// GetNode retrieves a single node with its interfaces
func (q *queries) GetNode(ctx context.Context, id int64) (*domain.Node, error) {
	return q.getNodeWhere(ctx, `id = ?`, id)
}

// GetNodeByMAC retrieves the node whose primary MAC is mac
func (q *queries) GetNodeByMAC(ctx context.Context, mac string) (*domain.Node, error) {
	return q.getNodeWhere(ctx, `mac = ?`, domain.NormalizeMAC(mac))
}

func (q *queries) getNodeWhere(ctx context.Context, where string, arg any) (*domain.Node, error) {
	var row nodeRow
	err := q.q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE `+where, arg).Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query node: %w", err)
	}

	node, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("failed to decode node %d: %w", row.ID, err)
	}
	if node.Interfaces, err = q.ListInterfaces(ctx, node.ID); err != nil {
		return nil, err
	}
	return node, nil
}

// CreateNode inserts a node and sets its ID. Interfaces are stored separately.
func (q *queries) CreateNode(ctx context.Context, node *domain.Node) error {
	now := time.Now().UTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.UpdatedAt = now
	node.MAC = domain.NormalizeMAC(node.MAC)

	args, err := nodeInsertArgs(node)
	if err != nil {
		return err
	}

	res, err := q.q.ExecContext(ctx, `
		INSERT INTO nodes (name, mac, status, online, cluster_id, meta, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert node: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read node id: %w", err)
	}
	node.ID = id
	return nil
}

// UpdateNode writes the node's own columns. The topology version is owned by
// the reconciler and is not touched.
func (q *queries) UpdateNode(ctx context.Context, node *domain.Node) error {
	node.UpdatedAt = time.Now().UTC()

	metaJSON, err := marshalToNull(node.Meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	_, err = q.q.ExecContext(ctx, `
		UPDATE nodes SET
			name = ?,
			status = ?,
			online = ?,
			cluster_id = ?,
			meta = ?,
			updated_at = ?
		WHERE id = ?
	`, stringToNull(node.Name), string(node.Status), boolToInt(node.Online),
		int64PtrToNull(node.ClusterID), metaJSON, node.UpdatedAt, node.ID)
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}
	return nil
}

// DeleteNode removes a node. Interfaces and assignments go by CASCADE.
func (q *queries) DeleteNode(ctx context.Context, id int64) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	return nil
}

// ListInterfaces returns the node's interfaces with their assignment sets
func (q *queries) ListInterfaces(ctx context.Context, nodeID int64) ([]domain.NIC, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+nicColumns+` FROM interfaces WHERE node_id = ? ORDER BY id
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interfaces: %w", err)
	}
	defer rows.Close()

	nics := []domain.NIC{}
	index := make(map[int64]int)
	for rows.Next() {
		var row nicRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan interface: %w", err)
		}
		index[row.ID] = len(nics)
		nics = append(nics, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interfaces: %w", err)
	}
	rows.Close()

	if len(nics) == 0 {
		return nics, nil
	}

	edgeRows, err := q.q.QueryContext(ctx, `
		SELECT a.interface_id, a.network_id
		FROM assignments a
		JOIN interfaces i ON i.id = a.interface_id
		WHERE i.node_id = ?
		ORDER BY a.interface_id, a.network_id
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var ifaceID, networkID int64
		if err := edgeRows.Scan(&ifaceID, &networkID); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if i, ok := index[ifaceID]; ok {
			nics[i].AssignedNetworks = append(nics[i].AssignedNetworks, networkID)
		}
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return nics, nil
}

// GetInterfaceByMAC returns the interface carrying mac on any node
func (q *queries) GetInterfaceByMAC(ctx context.Context, mac string) (*domain.NIC, error) {
	var row nicRow
	err := q.q.QueryRowContext(ctx, `
		SELECT `+nicColumns+` FROM interfaces WHERE mac = ?
	`, domain.NormalizeMAC(mac)).Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query interface: %w", err)
	}
	nic := row.toDomain()
	return &nic, nil
}

// CreateInterface inserts an interface and sets its ID
func (q *queries) CreateInterface(ctx context.Context, nic *domain.NIC) error {
	nic.MAC = domain.NormalizeMAC(nic.MAC)
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO interfaces (node_id, name, mac, current_speed, max_speed)
		VALUES (?, ?, ?, ?, ?)
	`, nic.NodeID, nic.Name, nic.MAC, intPtrToNull(nic.CurrentSpeed), intPtrToNull(nic.MaxSpeed))
	if err != nil {
		return fmt.Errorf("failed to insert interface: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read interface id: %w", err)
	}
	nic.ID = id
	if nic.AssignedNetworks == nil {
		nic.AssignedNetworks = []int64{}
	}
	return nil
}

// UpdateInterface refreshes the probe facts of an interface. Ownership and
// MAC never change.
func (q *queries) UpdateInterface(ctx context.Context, nic *domain.NIC) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE interfaces SET name = ?, current_speed = ?, max_speed = ?
		WHERE id = ?
	`, nic.Name, intPtrToNull(nic.CurrentSpeed), intPtrToNull(nic.MaxSpeed), nic.ID)
	if err != nil {
		return fmt.Errorf("failed to update interface: %w", err)
	}
	return nil
}
