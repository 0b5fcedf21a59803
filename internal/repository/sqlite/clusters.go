package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleetforge/internal/domain"
)

// ListClusters returns all clusters
func (q *queries) ListClusters(ctx context.Context) ([]*domain.Cluster, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+clusterColumns+` FROM clusters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*domain.Cluster
	for rows.Next() {
		var row clusterRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		clusters = append(clusters, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clusters: %w", err)
	}
	return clusters, nil
}

// GetCluster retrieves a single cluster by ID
func (q *queries) GetCluster(ctx context.Context, id int64) (*domain.Cluster, error) {
	return q.getClusterWhere(ctx, `id = ?`, id)
}

// GetClusterByName retrieves a cluster by its unique name
func (q *queries) GetClusterByName(ctx context.Context, name string) (*domain.Cluster, error) {
	return q.getClusterWhere(ctx, `name = ?`, name)
}

func (q *queries) getClusterWhere(ctx context.Context, where string, arg any) (*domain.Cluster, error) {
	var row clusterRow
	err := q.q.QueryRowContext(ctx, `SELECT `+clusterColumns+` FROM clusters WHERE `+where, arg).Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster: %w", err)
	}
	return row.toDomain(), nil
}

// CreateCluster inserts a cluster and sets its ID
func (q *queries) CreateCluster(ctx context.Context, cluster *domain.Cluster) error {
	now := time.Now().UTC()
	cluster.CreatedAt = now
	cluster.UpdatedAt = now

	res, err := q.q.ExecContext(ctx, `
		INSERT INTO clusters (name, release_id, mode, net_manager, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cluster.Name, int64PtrToNull(cluster.ReleaseID), stringToNull(cluster.Mode),
		stringToNull(cluster.NetManager), cluster.CreatedAt, cluster.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert cluster: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read cluster id: %w", err)
	}
	cluster.ID = id
	return nil
}

// UpdateCluster writes every column of the cluster
func (q *queries) UpdateCluster(ctx context.Context, cluster *domain.Cluster) error {
	cluster.UpdatedAt = time.Now().UTC()
	_, err := q.q.ExecContext(ctx, `
		UPDATE clusters SET name = ?, release_id = ?, mode = ?, net_manager = ?, updated_at = ?
		WHERE id = ?
	`, cluster.Name, int64PtrToNull(cluster.ReleaseID), stringToNull(cluster.Mode),
		stringToNull(cluster.NetManager), cluster.UpdatedAt, cluster.ID)
	if err != nil {
		return fmt.Errorf("failed to update cluster: %w", err)
	}
	return nil
}

// DeleteCluster removes a cluster. Its nodes are detached and its network
// groups, attributes and their assignments go by CASCADE.
func (q *queries) DeleteCluster(ctx context.Context, id int64) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM clusters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}
	return nil
}

// GetClusterAttributes returns the stored attributes, or nil when none were saved
func (q *queries) GetClusterAttributes(ctx context.Context, clusterID int64) (*domain.ClusterAttributes, error) {
	var editable, generated sql.NullString
	err := q.q.QueryRowContext(ctx, `
		SELECT editable, generated FROM cluster_attributes WHERE cluster_id = ?
	`, clusterID).Scan(&editable, &generated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster attributes: %w", err)
	}

	attrs := &domain.ClusterAttributes{ClusterID: clusterID}
	if err := unmarshalJSONField(editable, &attrs.Editable); err != nil {
		return nil, fmt.Errorf("unmarshal editable: %w", err)
	}
	if err := unmarshalJSONField(generated, &attrs.Generated); err != nil {
		return nil, fmt.Errorf("unmarshal generated: %w", err)
	}
	return attrs, nil
}

// SaveClusterAttributes inserts or replaces the attributes of a cluster
func (q *queries) SaveClusterAttributes(ctx context.Context, attrs *domain.ClusterAttributes) error {
	editable, err := marshalToNull(attrs.Editable)
	if err != nil {
		return fmt.Errorf("marshal editable: %w", err)
	}
	generated, err := marshalToNull(attrs.Generated)
	if err != nil {
		return fmt.Errorf("marshal generated: %w", err)
	}

	_, err = q.q.ExecContext(ctx, `
		INSERT INTO cluster_attributes (cluster_id, editable, generated)
		VALUES (?, ?, ?)
		ON CONFLICT(cluster_id) DO UPDATE SET
			editable = excluded.editable,
			generated = excluded.generated
	`, attrs.ClusterID, editable, generated)
	if err != nil {
		return fmt.Errorf("failed to save cluster attributes: %w", err)
	}
	return nil
}

// ListNetworkGroups returns the network groups of a cluster
func (q *queries) ListNetworkGroups(ctx context.Context, clusterID int64) ([]*domain.NetworkGroup, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+networkGroupColumns+` FROM network_groups WHERE cluster_id = ? ORDER BY id
	`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query network groups: %w", err)
	}
	defer rows.Close()

	var groups []*domain.NetworkGroup
	for rows.Next() {
		var row networkGroupRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan network group: %w", err)
		}
		groups = append(groups, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating network groups: %w", err)
	}
	return groups, nil
}

// GetNetworkGroup retrieves a network group by ID
func (q *queries) GetNetworkGroup(ctx context.Context, id int64) (*domain.NetworkGroup, error) {
	var row networkGroupRow
	err := q.q.QueryRowContext(ctx, `
		SELECT `+networkGroupColumns+` FROM network_groups WHERE id = ?
	`, id).Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query network group: %w", err)
	}
	return row.toDomain(), nil
}

// CreateNetworkGroup inserts a network group and sets its ID
func (q *queries) CreateNetworkGroup(ctx context.Context, group *domain.NetworkGroup) error {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO network_groups (name, cluster_id, vlan_start, cidr, gateway)
		VALUES (?, ?, ?, ?, ?)
	`, group.Name, group.ClusterID, intPtrToNull(group.VlanStart),
		stringToNull(group.CIDR), stringToNull(group.Gateway))
	if err != nil {
		return fmt.Errorf("failed to insert network group: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read network group id: %w", err)
	}
	group.ID = id
	return nil
}

// DeleteNetworkGroup removes a network group and every assignment to it
func (q *queries) DeleteNetworkGroup(ctx context.Context, id int64) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM network_groups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete network group: %w", err)
	}
	return nil
}
